package site

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	errs "e6pools/pkg/errors"
)

// Gallery is the metadata of one pool. It is not modified after parsing.
type Gallery struct {
	ID        int
	Name      string
	PostCount int
	PostIDs   []int
	Success   bool
	// Raw is the pool document as served.
	Raw json.RawMessage
}

// MediaItem is one post to download.
type MediaItem struct {
	PostID    int
	SourceURL string
	Extension string
}

type poolDocument struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	PostCount int    `json:"post_count"`
	PostIDs   []int  `json:"post_ids"`
	Success   *bool  `json:"success"`
	Reason    string `json:"reason"`
}

type postsDocument struct {
	Posts []struct {
		ID   int `json:"id"`
		File struct {
			URL *string `json:"url"`
			Ext string  `json:"ext"`
		} `json:"file"`
	} `json:"posts"`
}

// DisplayName restores the spaces the site encodes as underscores.
func DisplayName(name string) string {
	return strings.ReplaceAll(name, "_", " ")
}

// ParseGallery decodes a pool document. A document the site marks with
// success:false yields an ErrorTypeNotFound error.
func ParseGallery(id int, body []byte) (*Gallery, error) {
	var doc poolDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, errs.Wrapf(errs.ErrorTypeParsing, "parse pool", err, "pool %d", id)
	}
	if doc.Success != nil && !*doc.Success {
		reason := doc.Reason
		if reason == "" {
			reason = "unsuccessful response"
		}
		return nil, errs.New(errs.ErrorTypeNotFound, "parse pool", fmt.Sprintf("pool %d: %s", id, reason))
	}
	if doc.ID == 0 {
		doc.ID = id
	}

	return &Gallery{
		ID:        doc.ID,
		Name:      DisplayName(doc.Name),
		PostCount: doc.PostCount,
		PostIDs:   doc.PostIDs,
		Success:   true,
		Raw:       append(json.RawMessage(nil), body...),
	}, nil
}

// ParsePosts decodes one listing page.
func ParsePosts(body []byte) ([]MediaItem, error) {
	var doc postsDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, errs.Wrap(errs.ErrorTypeParsing, "parse posts", err)
	}

	items := make([]MediaItem, 0, len(doc.Posts))
	for _, p := range doc.Posts {
		item := MediaItem{PostID: p.ID, Extension: p.File.Ext}
		if p.File.URL != nil {
			item.SourceURL = *p.File.URL
		}
		items = append(items, item)
	}
	return items, nil
}

// MetaJSON renders the pool document with the display name, indented by two
// spaces.
func (g *Gallery) MetaJSON() ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(g.Raw))
	dec.UseNumber()
	var doc map[string]interface{}
	if err := dec.Decode(&doc); err != nil {
		return nil, errs.Wrap(errs.ErrorTypeParsing, "meta json", err)
	}
	doc["name"] = g.Name
	return json.MarshalIndent(doc, "", "  ")
}

// NormalizeIDs drops non-positive and duplicate IDs and sorts ascending.
func NormalizeIDs(ids []int) []int {
	seen := make(map[int]struct{}, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if id <= 0 {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}

// DedupeItems keeps the first item per PostID and sorts ascending by PostID.
func DedupeItems(items []MediaItem) []MediaItem {
	seen := make(map[int]struct{}, len(items))
	out := make([]MediaItem, 0, len(items))
	for _, it := range items {
		if _, dup := seen[it.PostID]; dup {
			continue
		}
		seen[it.PostID] = struct{}{}
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PostID < out[j].PostID })
	return out
}
