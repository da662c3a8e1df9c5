package course

import (
	"testing"

	"github.com/novamarket/novamarket-go/internal/model"
)

func sampleCourse() model.Product {
	return model.Product{
		ID:       "c1",
		Title:    "Sample Course",
		Category: model.CategoryCourses,
		Modules: []model.CourseModule{
			{
				ID:    "m1",
				Title: "Introduction",
				Lessons: []model.Lesson{
					{ID: "l1", Title: "Why?", Duration: "10:00"},
					{ID: "l2", Title: "Setup", Duration: "15:00"},
				},
			},
			{
				ID:    "m2",
				Title: "Deep Dive",
				Lessons: []model.Lesson{
					{ID: "l3", Title: "Internals", Duration: "20:00"},
				},
			},
		},
	}
}

// TestNewNavigatorSelectsFirstLesson verifies the initial selection.
func TestNewNavigatorSelectsFirstLesson(t *testing.T) {
	n := NewNavigator(sampleCourse())
	current := n.Current()
	if current == nil || current.ID != "l1" {
		t.Fatalf("Current() = %v, want l1", current)
	}
}

// TestNewNavigatorEmptyCourse verifies the nullable empty state for courses
// without lessons.
func TestNewNavigatorEmptyCourse(t *testing.T) {
	n := NewNavigator(model.Product{ID: "c2"})
	if n.Current() != nil {
		t.Error("Current() on empty course should be nil")
	}
	if n.Next() {
		t.Error("Next() on empty course should report false")
	}

	// Modules present but no lessons is still the empty state
	n = NewNavigator(model.Product{Modules: []model.CourseModule{{ID: "m1"}}})
	if n.Current() != nil {
		t.Error("Current() with lessonless module should be nil")
	}
}

// TestSelectLessonUnconditional verifies any lesson can be jumped to
// directly.
func TestSelectLessonUnconditional(t *testing.T) {
	n := NewNavigator(sampleCourse())
	if !n.SelectLesson("l3") {
		t.Fatal("SelectLesson(l3) = false, want true")
	}
	if current := n.Current(); current == nil || current.ID != "l3" {
		t.Errorf("Current() = %v, want l3", current)
	}

	if n.SelectLesson("missing") {
		t.Error("SelectLesson(missing) = true, want false")
	}
	if current := n.Current(); current == nil || current.ID != "l3" {
		t.Errorf("Current() after failed select = %v, want l3 unchanged", current)
	}
}

// TestNextCrossesModuleBoundary verifies advancement spans modules and
// stops at the end.
func TestNextCrossesModuleBoundary(t *testing.T) {
	n := NewNavigator(sampleCourse())

	if !n.Next() {
		t.Fatal("Next() to l2 = false, want true")
	}
	if current := n.Current(); current.ID != "l2" {
		t.Errorf("Current() = %s, want l2", current.ID)
	}

	if !n.Next() {
		t.Fatal("Next() to l3 = false, want true")
	}
	if current := n.Current(); current.ID != "l3" {
		t.Errorf("Current() = %s, want l3", current.ID)
	}

	if n.Next() {
		t.Error("Next() at end of course = true, want false")
	}
	if current := n.Current(); current.ID != "l3" {
		t.Errorf("Current() after end = %s, want l3 unchanged", current.ID)
	}
}

// TestPlayableRequiresModules verifies category alone does not make a
// product playable.
func TestPlayableRequiresModules(t *testing.T) {
	courseWithoutModules := model.Product{ID: "c3", Category: model.CategoryCourses}
	if courseWithoutModules.Playable() {
		t.Error("Playable() without modules = true, want false")
	}
	if !sampleCourse().Playable() {
		t.Error("Playable() with modules = false, want true")
	}
}
