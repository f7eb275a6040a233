// Package jsonenc renders a query result as the gateway's JSON page
// envelope: data rows plus HATEOAS links and pagination meta. A flat
// variant renders just the row array, for the no-pagination-envelope
// `/data/json/` route.
package jsonenc

import (
	"encoding/json"
	"io"

	"tabular-gateway/internal/downstream"
)

// Links carries the envelope's HATEOAS pointers. Profile and Swagger
// are always present; Next/Prev are omitted (not null) when absent.
type Links struct {
	Profile string `json:"profile"`
	Swagger string `json:"swagger"`
	Next    string `json:"next,omitempty"`
	Prev    string `json:"prev,omitempty"`
}

// Meta carries the pagination counters. Total is nil when the
// downstream could not report one.
type Meta struct {
	Page     int  `json:"page"`
	PageSize int  `json:"page_size"`
	Total    *int `json:"total"`
}

// Page is the full JSON response envelope.
type Page struct {
	Data  []downstream.Row `json:"data"`
	Links Links            `json:"links"`
	Meta  Meta             `json:"meta"`
}

// NewPage builds the envelope. rows is never nil in the output even
// when the result set is empty, so clients always see `"data": []`.
func NewPage(rows []downstream.Row, links Links, meta Meta) *Page {
	if rows == nil {
		rows = []downstream.Row{}
	}
	return &Page{Data: rows, Links: links, Meta: meta}
}

// Write encodes the envelope to w.
func (p *Page) Write(w io.Writer) error {
	return json.NewEncoder(w).Encode(p)
}

// WriteFlat encodes just the row array, for the unpaginated
// `/data/json/` route — small consumers that want the whole result
// with no envelope.
func WriteFlat(w io.Writer, rows []downstream.Row) error {
	if rows == nil {
		rows = []downstream.Row{}
	}
	return json.NewEncoder(w).Encode(rows)
}
