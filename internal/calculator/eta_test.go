package calculator

import (
	"math"
	"sync"
	"testing"

	"github.com/mmynk/canteen/internal/models"
)

func pending(id string, items int) QueueEntry {
	return QueueEntry{OrderID: id, Status: models.OrderPending, ItemCount: items}
}

func TestEstimateAt(t *testing.T) {
	cfg := DefaultETAConfig()

	t.Run("rank 3 behind three ordinary orders", func(t *testing.T) {
		queue := []QueueEntry{pending("a", 1), pending("b", 2), pending("c", 3), pending("d", 1)}
		got := cfg.EstimateAt(queue, 3)
		if got.Ready || got.Minutes != 35 {
			t.Errorf("EstimateAt(rank 3) = %+v, want 35 minutes", got)
		}
	})

	t.Run("rank 0 equals baseline regardless of queue behind", func(t *testing.T) {
		for _, behind := range []int{0, 1, 5, 50} {
			queue := []QueueEntry{{OrderID: "head", Status: models.OrderCooking, ItemCount: 40}}
			for i := 0; i < behind; i++ {
				queue = append(queue, pending("x", 30))
			}
			got := cfg.EstimateAt(queue, 0)
			if got.Minutes != cfg.CookingBaseline {
				t.Errorf("with %d behind: got %v, want %v", behind, got.Minutes, cfg.CookingBaseline)
			}
		}
	})

	t.Run("bulk order ahead scales the slot", func(t *testing.T) {
		// slots ahead: 15 (bulk) + 10 = 25, average 12.5; eta = 5 + 2*12.5 = 30
		queue := []QueueEntry{pending("bulk", 11), pending("b", 1), pending("c", 1)}
		got := cfg.EstimateAt(queue, 2)
		if got.Minutes != 30 {
			t.Errorf("got %v minutes, want 30", got.Minutes)
		}
	})

	t.Run("bulk target does not delay itself", func(t *testing.T) {
		queue := []QueueEntry{pending("a", 1), pending("bulk", 25)}
		got := cfg.EstimateAt(queue, 1)
		if got.Minutes != 15 {
			t.Errorf("got %v minutes, want 15", got.Minutes)
		}
	})

	t.Run("threshold is exclusive", func(t *testing.T) {
		if cfg.IsBulk(cfg.BulkThreshold) {
			t.Error("an order of exactly BulkThreshold items should not be bulk")
		}
		if !cfg.IsBulk(cfg.BulkThreshold + 1) {
			t.Error("an order above BulkThreshold should be bulk")
		}
	})

	t.Run("out of range rank", func(t *testing.T) {
		if got := cfg.EstimateAt(nil, 0); got != (ETA{}) {
			t.Errorf("got %+v, want zero ETA", got)
		}
	})
}

func TestBaselineReadySentinel(t *testing.T) {
	cfg := DefaultETAConfig()
	for _, s := range []models.OrderStatus{models.OrderReadyForPickup, models.OrderCompleted} {
		if _, ready := cfg.Baseline(s); !ready {
			t.Errorf("Baseline(%s) should be ready", s)
		}
	}
	if m, ready := cfg.Baseline(models.OrderPending); ready || m != 5 {
		t.Errorf("Baseline(pending) = %v, %v", m, ready)
	}
}

func TestEstimate(t *testing.T) {
	cfg := DefaultETAConfig()

	entries := []QueueEntry{
		{OrderID: "ready", Status: models.OrderReadyForPickup, ItemCount: 2},
		{OrderID: "cooking", Status: models.OrderCooking, ItemCount: 2},
		pending("p1", 1),
		pending("p2", 12),
		pending("p3", 1),
	}
	stats := cfg.Estimate(entries)

	if stats.QueueLength != 4 {
		t.Errorf("QueueLength = %d, want 4", stats.QueueLength)
	}

	want := map[string]float64{
		"cooking": 3,  // rank 0
		"p1":      15, // 5 + 1*10
		"p2":      25, // 5 + 2*10
		"p3":      40, // 5 + 3*(10+10+15)/3
	}
	for _, o := range stats.PerOrder {
		if o.OrderID == "ready" {
			if !o.ETA.Ready || o.Rank != -1 {
				t.Errorf("ready order: %+v", o)
			}
			continue
		}
		if o.ETA.Minutes != want[o.OrderID] {
			t.Errorf("%s eta = %v, want %v", o.OrderID, o.ETA.Minutes, want[o.OrderID])
		}
	}
	if !stats.PerOrder[3].Bulk {
		t.Error("p2 should be flagged bulk")
	}

	wantAvg := (3.0 + 15 + 25 + 40) / 4
	if math.Abs(stats.AverageWaitMinutes-wantAvg) > 1e-9 {
		t.Errorf("AverageWaitMinutes = %v, want %v", stats.AverageWaitMinutes, wantAvg)
	}

	// Estimate and EstimateAt agree.
	active := entries[1:]
	for rank := range active {
		if got := cfg.EstimateAt(active, rank); got.Minutes != want[active[rank].OrderID] {
			t.Errorf("EstimateAt(%d) = %v, want %v", rank, got.Minutes, want[active[rank].OrderID])
		}
	}
}

func TestEstimateMealShares(t *testing.T) {
	cfg := DefaultETAConfig()

	t.Run("same status shares a slot", func(t *testing.T) {
		entries := []QueueEntry{
			{OrderID: "a", Status: models.OrderPending, ItemCount: 2, Meal: "s1"},
			pending("x", 1),
			{OrderID: "b", Status: models.OrderPending, ItemCount: 2, Meal: "s1"},
			{OrderID: "c", Status: models.OrderCooking, ItemCount: 2, Meal: "s1"},
		}
		stats := cfg.Estimate(entries)

		want := []struct {
			id   string
			rank int
			eta  float64
		}{
			{"a", 0, 5},
			{"x", 1, 15},
			{"b", 0, 5},  // rides with a
			{"c", 2, 23}, // 3 + 10 + 10, different status so its own slot
		}
		if len(stats.PerOrder) != len(want) {
			t.Fatalf("PerOrder = %+v", stats.PerOrder)
		}
		for i, w := range want {
			o := stats.PerOrder[i]
			if o.OrderID != w.id || o.Rank != w.rank || o.ETA.Minutes != w.eta {
				t.Errorf("PerOrder[%d] = %+v, want %s rank %d eta %v", i, o, w.id, w.rank, w.eta)
			}
		}
		if stats.QueueLength != 4 {
			t.Errorf("QueueLength = %d, want 4", stats.QueueLength)
		}
		if wantAvg := (5.0 + 15 + 5 + 23) / 4; math.Abs(stats.AverageWaitMinutes-wantAvg) > 1e-9 {
			t.Errorf("AverageWaitMinutes = %v, want %v", stats.AverageWaitMinutes, wantAvg)
		}
	})

	t.Run("share behind a ready order is still queued", func(t *testing.T) {
		stats := cfg.Estimate([]QueueEntry{
			{OrderID: "a", Status: models.OrderReadyForPickup, ItemCount: 2, Meal: "s1"},
			{OrderID: "b", Status: models.OrderPending, ItemCount: 2, Meal: "s1"},
		})
		if stats.QueueLength != 1 {
			t.Errorf("QueueLength = %d, want 1", stats.QueueLength)
		}
		b := stats.PerOrder[1]
		if b.OrderID != "b" || b.ETA.Ready || b.Rank != 0 || b.ETA.Minutes != 5 {
			t.Errorf("pending share = %+v", b)
		}
	})
}

func TestEstimateEmpty(t *testing.T) {
	stats := DefaultETAConfig().Estimate(nil)
	if stats.QueueLength != 0 || stats.AverageWaitMinutes != 0 || len(stats.PerOrder) != 0 {
		t.Errorf("unexpected stats for empty queue: %+v", stats)
	}
}

func TestEstimateConcurrentCallsAgree(t *testing.T) {
	cfg := DefaultETAConfig()
	entries := []QueueEntry{pending("a", 1), pending("b", 20), pending("c", 3)}
	want := cfg.Estimate(entries)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got := cfg.Estimate(entries)
			if got.AverageWaitMinutes != want.AverageWaitMinutes || got.QueueLength != want.QueueLength {
				t.Errorf("concurrent Estimate drifted: %+v vs %+v", got, want)
			}
		}()
	}
	wg.Wait()
}

func TestAverageSlot(t *testing.T) {
	cfg := DefaultETAConfig()
	if got := cfg.AverageSlot(nil); got != cfg.SlotMinutes {
		t.Errorf("AverageSlot(nil) = %v, want %v", got, cfg.SlotMinutes)
	}
	if got := cfg.AverageSlot([]QueueEntry{pending("a", 1), pending("b", 11)}); got != 12.5 {
		t.Errorf("AverageSlot = %v, want 12.5", got)
	}
}
