package cards

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"hotspotctl/internal/model"
)

func TestGenerate_CountAndUniqueness(t *testing.T) {
	t.Parallel()

	g := NewGenerator(100)
	for _, count := range []int{1, 10, 100} {
		batch, err := g.Generate(BatchSpec{
			Count:          count,
			Prefix:         "user",
			Profile:        "default",
			DataQuotaMB:    1024,
			TimeQuotaHours: 24,
			ValidityDays:   30,
		})
		if err != nil {
			t.Fatalf("Generate(%d): %v", count, err)
		}
		if len(batch.Cards) != count {
			t.Fatalf("count=%d got %d cards", count, len(batch.Cards))
		}
		seen := map[string]struct{}{}
		for _, c := range batch.Cards {
			if _, dup := seen[c.Username]; dup {
				t.Fatalf("duplicate username %q in batch of %d", c.Username, count)
			}
			seen[c.Username] = struct{}{}
		}
		if batch.ID == "" {
			t.Fatalf("batch id empty")
		}
	}
}

func TestGenerate_QuotaLabels(t *testing.T) {
	t.Parallel()

	g := NewGenerator(100)
	batch, err := g.Generate(BatchSpec{
		Count: 1, DataQuotaMB: 1024, TimeQuotaHours: 36, ValidityDays: 30,
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	card := batch.Cards[0]
	if card.DataQuota != "1.0 GB" {
		t.Fatalf("data=%q", card.DataQuota)
	}
	if card.TimeQuota != "1 day and 12 hours" {
		t.Fatalf("time=%q", card.TimeQuota)
	}
	if card.Profile != "default" || !strings.HasPrefix(card.Username, "user") {
		t.Fatalf("card=%+v", card)
	}
}

func TestGenerate_Validation(t *testing.T) {
	t.Parallel()

	g := NewGenerator(100)
	cases := []BatchSpec{
		{Count: 0, ValidityDays: 30},
		{Count: 101, ValidityDays: 30},
		{Count: 5, ValidityDays: 0},
		{Count: 5, ValidityDays: 30, DataQuotaMB: -1},
		{Count: 5, ValidityDays: 30, TimeQuotaHours: -1},
	}
	for _, spec := range cases {
		_, err := g.Generate(spec)
		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("spec=%+v err=%v, want ValidationError", spec, err)
		}
	}
}

func TestGenerate_CeilingConfigurable(t *testing.T) {
	t.Parallel()

	g := NewGenerator(10)
	if _, err := g.Generate(BatchSpec{Count: 11, ValidityDays: 1}); err == nil {
		t.Fatalf("expected ceiling error")
	}
	if _, err := g.Generate(BatchSpec{Count: 10, ValidityDays: 1}); err != nil {
		t.Fatalf("unexpected: %v", err)
	}
}

func TestToDeviceRecords(t *testing.T) {
	t.Parallel()

	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	cardList := []model.AccessCard{
		{
			Username: "user000001", Password: "pw1", Profile: "default",
			DataQuota: "1.0 GB", TimeQuota: "1 day and 12 hours",
			ValidityDays: 30, CreatedAt: created,
		},
		{
			Username: "user000002", Password: "pw2", Profile: "default",
			DataQuota: "unlimited", TimeQuota: "unlimited",
			ValidityDays: 30, CreatedAt: created,
		},
	}

	records := ToDeviceRecords(cardList)
	if len(records) != 2 {
		t.Fatalf("records=%d", len(records))
	}
	if records[0].LimitBytesTotal != "1024M" {
		t.Fatalf("data limit=%q", records[0].LimitBytesTotal)
	}
	if records[0].LimitUptime != "36h" {
		t.Fatalf("time limit=%q", records[0].LimitUptime)
	}
	if records[0].Comment != "Generated on 2025-03-01" {
		t.Fatalf("comment=%q", records[0].Comment)
	}
	if records[1].LimitBytesTotal != "" || records[1].LimitUptime != "" {
		t.Fatalf("unlimited record=%+v", records[1])
	}
}

func TestToDeviceRecords_MalformedLabelFailsClosed(t *testing.T) {
	t.Parallel()

	records := ToDeviceRecords([]model.AccessCard{{
		Username: "user000003", Password: "pw", Profile: "default",
		DataQuota: "lots", TimeQuota: "7 foo",
		ValidityDays: 30, CreatedAt: time.Now(),
	}})
	if records[0].LimitBytesTotal != "" {
		t.Fatalf("data limit=%q", records[0].LimitBytesTotal)
	}
	if records[0].LimitUptime != "" {
		t.Fatalf("time limit=%q", records[0].LimitUptime)
	}
}

func TestWriteCSV(t *testing.T) {
	t.Parallel()

	g := NewGenerator(100)
	batch, err := g.Generate(BatchSpec{Count: 3, ValidityDays: 7, DataQuotaMB: 512, TimeQuotaHours: 12})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, batch.Cards); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("lines=%d\n%s", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[0], "username,password,") {
		t.Fatalf("missing header: %q", lines[0])
	}
	if !strings.Contains(lines[1], "512 MB") || !strings.Contains(lines[1], "12 hours") {
		t.Fatalf("row=%q", lines[1])
	}
}

func TestBatchSummary(t *testing.T) {
	t.Parallel()

	b := Batch{CreatedAt: time.Date(2025, 3, 1, 12, 30, 0, 0, time.UTC), Cards: make([]model.AccessCard, 5)}
	got := b.Summary()
	if !strings.Contains(got, "5 cards") || !strings.Contains(got, "2025-03-01 12:30") {
		t.Fatalf("summary=%q", got)
	}
}
