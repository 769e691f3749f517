package models

import "time"

// Note is a free-text note.
type Note struct {
	ID        string    `json:"id" firestore:"-"`
	Title     string    `json:"title" firestore:"title"`
	Content   string    `json:"content" firestore:"content"`
	CreatedAt time.Time `json:"createdAt" firestore:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt,omitempty" firestore:"updatedAt"`
}

func (n Note) Fields() map[string]interface{} {
	return map[string]interface{}{
		"title":     n.Title,
		"content":   n.Content,
		"createdAt": n.CreatedAt,
		"updatedAt": n.UpdatedAt,
	}
}
