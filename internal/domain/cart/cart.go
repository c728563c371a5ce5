// Package cart holds the per-session selection of tests and packages, the
// promo table and the store that persists both.
package cart

import (
	"errors"

	"github.com/google/uuid"

	"github.com/medbliss/medbliss/internal/domain/catalog"
	"github.com/medbliss/medbliss/internal/domain/patient"
)

var (
	ErrEntryNotFound  = errors.New("cart entry not found")
	ErrDuplicateEntry = errors.New("cart already has this item for the patient")
)

// Entry is one selected catalog item tagged to a patient. EntryID is assigned
// on add and never changes.
type Entry struct {
	EntryID       string       `json:"entryId"`
	ID            int          `json:"id"`
	Type          catalog.Kind `json:"type"`
	Name          string       `json:"name"`
	Price         int64        `json:"price"`
	OriginalPrice int64        `json:"originalPrice"`
	PatientID     string       `json:"patientId"`
	PatientName   string       `json:"patientName"`
}

type entryKey struct {
	id        int
	typ       catalog.Kind
	patientID string
}

func (e Entry) key() entryKey {
	return entryKey{id: e.ID, typ: e.Type, patientID: normalizePatient(e.PatientID)}
}

func normalizePatient(id string) string {
	if id == "" {
		return patient.SelfID
	}
	return id
}

// Totals are in whole rupees. Savings is the discount already embedded in
// item prices.
type Totals struct {
	Subtotal int64 `json:"subtotal"`
	Savings  int64 `json:"savings"`
}

// Group is the slice of a cart that belongs to one patient.
type Group struct {
	Patient  patient.Descriptor `json:"patient"`
	Entries  []Entry            `json:"entries"`
	Subtotal int64              `json:"subtotal"`
}

// Cart is an ordered list of entries with at most one entry per
// (id, type, patientId). The zero value is an empty cart.
type Cart struct {
	Entries []Entry `json:"entries"`
}

func (c *Cart) Len() int { return len(c.Entries) }

func (c *Cart) IsEmpty() bool { return len(c.Entries) == 0 }

func (c *Cart) indexOf(k entryKey) int {
	for i := range c.Entries {
		if c.Entries[i].key() == k {
			return i
		}
	}
	return -1
}

// Add appends e unless an entry with the same triple exists. It reports
// whether the cart changed.
func (c *Cart) Add(e Entry) bool {
	e.PatientID = normalizePatient(e.PatientID)
	if c.indexOf(e.key()) >= 0 {
		return false
	}
	if e.EntryID == "" {
		e.EntryID = uuid.New().String()
	}
	if e.PatientName == "" && e.PatientID == patient.SelfID {
		e.PatientName = "Self"
	}
	c.Entries = append(c.Entries, e)
	return true
}

// Remove deletes the entry matching the triple and reports whether one was
// found.
func (c *Cart) Remove(id int, typ catalog.Kind, patientID string) bool {
	i := c.indexOf(entryKey{id: id, typ: typ, patientID: normalizePatient(patientID)})
	if i < 0 {
		return false
	}
	c.Entries = append(c.Entries[:i], c.Entries[i+1:]...)
	return true
}

// Entry returns the entry with the given surrogate id.
func (c *Cart) Entry(entryID string) (Entry, bool) {
	for _, e := range c.Entries {
		if e.EntryID == entryID {
			return e, true
		}
	}
	return Entry{}, false
}

// Reassign moves one entry to another patient. The cart is unchanged when
// the entry is unknown or the move would duplicate another entry.
func (c *Cart) Reassign(entryID, patientID, patientName string) error {
	patientID = normalizePatient(patientID)
	idx := -1
	for i := range c.Entries {
		if c.Entries[i].EntryID == entryID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrEntryNotFound
	}

	target := c.Entries[idx]
	target.PatientID = patientID
	if j := c.indexOf(target.key()); j >= 0 && j != idx {
		return ErrDuplicateEntry
	}
	c.Entries[idx].PatientID = patientID
	c.Entries[idx].PatientName = patientName
	return nil
}

func (c *Cart) Totals() Totals {
	var t Totals
	for _, e := range c.Entries {
		t.Subtotal += e.Price
		t.Savings += e.OriginalPrice - e.Price
	}
	return t
}

// GroupByPatient buckets entries by patient in the order each patient first
// appears. resolve supplies descriptors; unknown patients fall back to the
// name stored on their first entry.
func (c *Cart) GroupByPatient(resolve func(patientID string) (patient.Descriptor, bool)) []Group {
	groups := []Group{}
	index := map[string]int{}
	for _, e := range c.Entries {
		pid := normalizePatient(e.PatientID)
		i, ok := index[pid]
		if !ok {
			i = len(groups)
			index[pid] = i
			groups = append(groups, Group{Patient: describe(pid, e.PatientName, resolve)})
		}
		groups[i].Entries = append(groups[i].Entries, e)
		groups[i].Subtotal += e.Price
	}
	return groups
}

func describe(pid, name string, resolve func(string) (patient.Descriptor, bool)) patient.Descriptor {
	if resolve != nil {
		if d, ok := resolve(pid); ok {
			return d
		}
	}
	if name == "" {
		name = "Self"
	}
	return patient.Descriptor{ID: pid, Name: name}
}
