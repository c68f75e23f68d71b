package store

import (
	"encoding/json"
	"time"
)

// President is a registry row. EndDate is empty while the president is in
// office.
type President struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date,omitempty"`
	ImageURL  string `json:"image_url,omitempty"`
}

// DefaultPresidents seeds an empty registry.
var DefaultPresidents = []President{
	{
		ID:        "mahinda-rajapaksa",
		Name:      "Mahinda Rajapaksa",
		StartDate: "2005-11-19",
		EndDate:   "2015-01-09",
		ImageURL:  "https://pbs.twimg.com/profile_images/541867053351583744/rcxem8NU_400x400.jpeg",
	},
	{
		ID:        "maithripala-sirisena",
		Name:      "Maithripala Sirisena",
		StartDate: "2015-01-09",
		EndDate:   "2019-11-18",
		ImageURL:  "https://encrypted-tbn0.gstatic.com/images?q=tbn:ANd9GcTK63FcG01JQFYLMOW3Fiz7aAt53swCyNpekQ&s",
	},
	{
		ID:        "gotabaya-rajapaksa",
		Name:      "Gotabaya Rajapaksa",
		StartDate: "2019-11-18",
		EndDate:   "2022-07-14",
		ImageURL:  "https://etimg.etb2bimg.com/photo/90283189.cms",
	},
	{
		ID:        "ranil-wickremesinghe",
		Name:      "Ranil Wickremesinghe",
		StartDate: "2022-07-21",
		EndDate:   "2024-09-30",
		ImageURL:  "https://encrypted-tbn0.gstatic.com/images?q=tbn:ANd9GcTxqJKbd0DrTJUz80nbZGkkh1DVieN2p4wZAA&s",
	},
	{
		ID:        "anura-kumara-dissanayake",
		Name:      "Anura Kumara Dissanayake",
		StartDate: "2024-10-01",
		ImageURL:  "https://encrypted-tbn0.gstatic.com/images?q=tbn:ANd9GcRdOoGPxjbGmDh3erxJupQRQRIDT7IwIBNwbw&s",
	},
}

// CommitRecord is one accepted commit. Rows are append-only.
type CommitRecord struct {
	ID          string          `json:"id"`
	Scope       string          `json:"scope"`
	Number      string          `json:"gazette_number"`
	Date        string          `json:"gazette_date"`
	Format      string          `json:"gazette_format"`
	Records     int             `json:"records"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	ArchiveKey  string          `json:"archive_key,omitempty"`
	JournalHash string          `json:"journal_hash,omitempty"`
	CommittedAt time.Time       `json:"committed_at"`
}

// CommitFilter narrows ListCommits. Zero values match everything; Limit
// defaults to 50 and is capped at 500.
type CommitFilter struct {
	Scope  string
	Number string
	Limit  int
}

func (f CommitFilter) limit() int {
	switch {
	case f.Limit <= 0:
		return 50
	case f.Limit > 500:
		return 500
	}
	return f.Limit
}
