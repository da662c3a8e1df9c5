// internal/course/navigator.go
// Package course implements curriculum navigation for playable products.
// Entitlement is checked by the HTTP layer before a navigator is built;
// nothing here looks at the user.
package course

import (
	"github.com/novamarket/novamarket-go/internal/model"
)

// Navigator walks a course's module/lesson tree. The current lesson is
// nullable: a course with modules but no lessons presents an empty player
// state rather than failing.
type Navigator struct {
	modules []model.CourseModule
	current *position
}

// position addresses a lesson inside the module tree.
type position struct {
	module int
	lesson int
}

// NewNavigator builds a navigator for the product's curriculum, selecting
// the first lesson of the first module when one exists.
func NewNavigator(product model.Product) *Navigator {
	n := &Navigator{modules: product.Modules}
	for mi, module := range n.modules {
		if len(module.Lessons) > 0 {
			n.current = &position{module: mi, lesson: 0}
			break
		}
	}
	return n
}

// Current returns the selected lesson, or nil when nothing is selected.
func (n *Navigator) Current() *model.Lesson {
	if n.current == nil {
		return nil
	}
	lesson := n.modules[n.current.module].Lessons[n.current.lesson]
	return &lesson
}

// SelectLesson selects the lesson with the given ID unconditionally; there
// is no completion prerequisite. Returns false when the ID is not in the
// tree, leaving the selection unchanged.
func (n *Navigator) SelectLesson(id string) bool {
	for mi, module := range n.modules {
		for li, lesson := range module.Lessons {
			if lesson.ID == id {
				n.current = &position{module: mi, lesson: li}
				return true
			}
		}
	}
	return false
}

// Next advances to the following lesson, crossing module boundaries.
// Returns false at the end of the course or when nothing is selected.
func (n *Navigator) Next() bool {
	if n.current == nil {
		return false
	}
	pos := *n.current
	if pos.lesson+1 < len(n.modules[pos.module].Lessons) {
		n.current = &position{module: pos.module, lesson: pos.lesson + 1}
		return true
	}
	for mi := pos.module + 1; mi < len(n.modules); mi++ {
		if len(n.modules[mi].Lessons) > 0 {
			n.current = &position{module: mi, lesson: 0}
			return true
		}
	}
	return false
}
