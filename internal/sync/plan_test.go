package sync

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewPlanSortsParentsBeforeChildren(t *testing.T) {
	plan := NewPlan([]Item{
		{RelPath: "wp-content/themes/x/style.css", Action: ActionUpload},
		{RelPath: "index.php", Action: ActionUpload},
		{RelPath: "wp-content/index.php", Action: ActionUpload},
		{RelPath: "wp-content/themes/x/functions.php", Action: ActionUpload},
	}, nil)

	var got []string
	for _, item := range plan.Items {
		got = append(got, item.RelPath)
	}
	assert.Equal(t, []string{
		"index.php",
		"wp-content/index.php",
		"wp-content/themes/x/functions.php",
		"wp-content/themes/x/style.css",
	}, got)
}

func TestNewPlanBreaksTiesByAction(t *testing.T) {
	plan := NewPlan([]Item{
		{RelPath: "a.txt", Action: ActionUpload},
		{RelPath: "a.txt", Action: ActionDelete},
	}, nil)

	assert.Equal(t, ActionDelete, plan.Items[0].Action)
	assert.Equal(t, ActionUpload, plan.Items[1].Action)
}

func TestPlanEmptyAndTotals(t *testing.T) {
	empty := NewPlan(nil, []string{"note"})
	assert.True(t, empty.Empty())
	assert.Zero(t, empty.TotalBytes())

	plan := NewPlan([]Item{
		{RelPath: "a", Action: ActionUpload, Size: 100},
		{RelPath: "b", Action: ActionUpload, Size: 250},
	}, nil)
	assert.False(t, plan.Empty())
	assert.Equal(t, int64(350), plan.TotalBytes())
}
