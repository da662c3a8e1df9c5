// internal/catalog/seed.go
package catalog

import (
	"time"

	"github.com/novamarket/novamarket-go/internal/model"
)

// Seed returns the bundled starter catalog. It is served when the product
// store is unconfigured or unreachable so the storefront always has
// something to show.
func Seed() []model.Product {
	now := time.Now().UTC()
	return []model.Product{
		{
			ID:          "1",
			Title:       "Mastering React 18",
			Description: "The complete guide to modern frontend development with React, Hooks, and Advanced patterns.",
			Price:       49.99,
			Category:    model.CategoryCourses,
			ImageURL:    "https://picsum.photos/seed/react/800/600",
			FileURL:     "#",
			FileType:    "MP4 / Source Code",
			FileSize:    "4.2 GB",
			IsFree:      false,
			Rating:      4.8,
			SalesCount:  1250,
			CreatedAt:   now,
			Modules: []model.CourseModule{
				{
					ID:    "m1",
					Title: "Introduction",
					Lessons: []model.Lesson{
						{ID: "l1", Title: "Why React?", Duration: "10:00", VideoURL: "https://www.w3schools.com/html/mov_bbb.mp4"},
						{ID: "l2", Title: "Setup Environment", Duration: "15:00", VideoURL: "https://www.w3schools.com/html/mov_bbb.mp4"},
					},
				},
			},
		},
		{
			ID:          "2",
			Title:       "Cinematic LUTs Pack",
			Description: "15 premium LUTs for professional video color grading in Premiere Pro and Resolve.",
			Price:       19.00,
			Category:    model.CategoryVideoAssets,
			ImageURL:    "https://picsum.photos/seed/video/800/600",
			FileURL:     "#",
			FileType:    "ZIP / .cube",
			FileSize:    "125 MB",
			IsFree:      false,
			Rating:      4.5,
			SalesCount:  840,
			CreatedAt:   now,
		},
		{
			ID:          "3",
			Title:       "UI Design Fundamentals",
			Description: "Learn the core principles of UI design for web and mobile applications.",
			Price:       0,
			Category:    model.CategoryEbooks,
			ImageURL:    "https://picsum.photos/seed/design/800/600",
			FileURL:     "#",
			FileType:    "PDF",
			FileSize:    "12 MB",
			IsFree:      true,
			Rating:      4.9,
			SalesCount:  3500,
			CreatedAt:   now,
		},
		{
			ID:          "4",
			Title:       "Abstract Backgrounds Vol 1",
			Description: "A collection of high-resolution 4K abstract backgrounds for your design projects.",
			Price:       9.99,
			Category:    model.CategoryGraphics,
			ImageURL:    "https://picsum.photos/seed/abstract/800/600",
			FileURL:     "#",
			FileType:    "JPG / PNG",
			FileSize:    "450 MB",
			IsFree:      false,
			Rating:      4.2,
			SalesCount:  210,
			CreatedAt:   now,
		},
	}
}
