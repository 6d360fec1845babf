// Package bank loads the question bank and exposes the read-only indexes
// the rest of the core works against. The bank is loaded once and shared;
// nothing here mutates it after construction.
package bank

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/careprep/careprep/internal/model"
)

// Bank is the in-memory question index. Records preserves file order;
// ByID is the lookup scoring and delivery key on.
type Bank struct {
	Records []model.QuestionRecord
	ByID    map[string]model.QuestionRecord

	// Warnings lists records that loaded but would fail delivery
	// validation (missing English variant, bad answer key). They stay in
	// the bank: assembly may skip them, but scoring-time handling of a
	// bad record belongs to the scorer, not the loader.
	Warnings []string
}

// Load reads a JSON array of question records.
func Load(r io.Reader) (*Bank, error) {
	var records []model.QuestionRecord
	dec := json.NewDecoder(r)
	if err := dec.Decode(&records); err != nil {
		return nil, fmt.Errorf("decode question bank: %w", err)
	}
	return FromRecords(records)
}

// LoadFile reads a question bank from a JSON file on disk.
func LoadFile(path string) (*Bank, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open question bank: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// FromRecords builds a bank from already-decoded records. Records without
// a question_id or with a duplicate id are hard errors; content problems
// are collected as warnings.
func FromRecords(records []model.QuestionRecord) (*Bank, error) {
	b := &Bank{
		Records: records,
		ByID:    make(map[string]model.QuestionRecord, len(records)),
	}
	for i, q := range records {
		if q.QuestionID == "" {
			return nil, fmt.Errorf("question bank record %d: missing question_id", i)
		}
		if _, dup := b.ByID[q.QuestionID]; dup {
			return nil, fmt.Errorf("question bank: duplicate question_id %q", q.QuestionID)
		}
		b.ByID[q.QuestionID] = q
		if err := q.Validate(); err != nil {
			b.Warnings = append(b.Warnings, err.Error())
		}
	}
	return b, nil
}

// Len returns the number of records in the bank.
func (b *Bank) Len() int { return len(b.Records) }

// Get returns the record for an id and whether it exists.
func (b *Bank) Get(id string) (model.QuestionRecord, bool) {
	q, ok := b.ByID[id]
	return q, ok
}

// PartitionByChapter groups question ids by chapter for the listed
// chapters, preserving bank order within each partition. Records tagged
// with a chapter outside the list are left out.
func (b *Bank) PartitionByChapter(chapterTags []int) map[int][]string {
	parts := make(map[int][]string, len(chapterTags))
	for _, ch := range chapterTags {
		parts[ch] = nil
	}
	for _, q := range b.Records {
		ch := q.ChapterNumber()
		if _, ok := parts[ch]; ok {
			parts[ch] = append(parts[ch], q.QuestionID)
		}
	}
	return parts
}

// QuestionIDs returns all ids in bank order.
func (b *Bank) QuestionIDs() []string {
	ids := make([]string, 0, len(b.Records))
	for _, q := range b.Records {
		ids = append(ids, q.QuestionID)
	}
	return ids
}

// CorrectByID builds the frozen answer-key map for the given ids,
// skipping ids with no bank record.
func (b *Bank) CorrectByID(ids []string) map[string]string {
	m := make(map[string]string, len(ids))
	for _, id := range ids {
		if q, ok := b.ByID[id]; ok {
			m[id] = q.CorrectAnswer
		}
	}
	return m
}

// TagsByID builds the category/chapter snapshot for the given ids,
// skipping ids with no bank record.
func (b *Bank) TagsByID(ids []string) map[string]model.ContentTags {
	m := make(map[string]model.ContentTags, len(ids))
	for _, id := range ids {
		if q, ok := b.ByID[id]; ok {
			m[id] = model.ContentTags{CategoryID: q.CategoryTag, ChapterID: q.ChapterNumber()}
		}
	}
	return m
}
