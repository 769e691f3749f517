package models

import "time"

// File is an uploaded object together with its display metadata.
type File struct {
	ID          string    `json:"id" firestore:"-"`
	Name        string    `json:"name" firestore:"name"`
	Size        string    `json:"size" firestore:"size"` // Human readable, e.g. "1.5 MB"
	Type        string    `json:"type" firestore:"type"`
	FolderID    string    `json:"folderId,omitempty" firestore:"folderId"`
	DownloadURL string    `json:"downloadURL" firestore:"downloadURL"`
	StoragePath string    `json:"storagePath" firestore:"storagePath"`
	CreatedAt   time.Time `json:"createdAt" firestore:"createdAt"`
}

// Fields returns the document body. An empty FolderID is stored as null.
func (f File) Fields() map[string]interface{} {
	var folderID interface{}
	if f.FolderID != "" {
		folderID = f.FolderID
	}
	return map[string]interface{}{
		"name":        f.Name,
		"size":        f.Size,
		"type":        f.Type,
		"folderId":    folderID,
		"downloadURL": f.DownloadURL,
		"storagePath": f.StoragePath,
		"createdAt":   f.CreatedAt,
	}
}

// Folder groups files in the explorer. Deleting one leaves its files in place.
type Folder struct {
	ID        string    `json:"id" firestore:"-"`
	Name      string    `json:"name" firestore:"name"`
	CreatedAt time.Time `json:"createdAt" firestore:"createdAt"`
}

func (f Folder) Fields() map[string]interface{} {
	return map[string]interface{}{
		"name":      f.Name,
		"createdAt": f.CreatedAt,
	}
}
