package batch

import (
	"errors"
	"testing"
)

func TestNewOK(t *testing.T) {
	r := NewOK("supply_lot_1")
	if r.ID() != "supply_lot_1" {
		t.Errorf("ID() = %q", r.ID())
	}
	if r.Status() != StatusOK {
		t.Errorf("Status() = %q, want %q", r.Status(), StatusOK)
	}
	if r.Err() != nil {
		t.Errorf("Err() = %v, want nil", r.Err())
	}
}

func TestNewSkipped(t *testing.T) {
	err := errors.New("encode failed")
	r := NewSkipped("supply_lot_2", err)
	if r.ID() != "supply_lot_2" {
		t.Errorf("ID() = %q", r.ID())
	}
	if r.Status() != StatusSkipped {
		t.Errorf("Status() = %q, want %q", r.Status(), StatusSkipped)
	}
	if !errors.Is(r.Err(), err) {
		t.Errorf("Err() = %v, want %v", r.Err(), err)
	}
}

func TestStatusConstants(t *testing.T) {
	if StatusOK != "ok" {
		t.Errorf("StatusOK = %q", StatusOK)
	}
	if StatusSkipped != "skipped" {
		t.Errorf("StatusSkipped = %q", StatusSkipped)
	}
}
