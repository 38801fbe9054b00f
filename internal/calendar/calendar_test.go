package calendar

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/StockHamster/market-calendar/internal/sector"
	"github.com/StockHamster/market-calendar/pkg/logger"
	"github.com/StockHamster/market-calendar/pkg/models"
)

var seoul = time.FixedZone("KST", 9*3600)

func newCalendar(today string) *Calendar {
	c := New(DefaultHolidays(), time.Date(2025, 6, 30, 0, 0, 0, 0, seoul), seoul)
	now, _ := time.ParseInLocation(ISOLayout, today, seoul)
	now = now.Add(12 * time.Hour)
	c.now = func() time.Time { return now }
	return c
}

func day(s string) time.Time {
	t, err := time.ParseInLocation(ISOLayout, s, seoul)
	if err != nil {
		panic(err)
	}
	return t
}

func TestDayKey(t *testing.T) {
	if got := DayKey(day("2025-06-30")); got != "Mon Jun 30 2025" {
		t.Fatalf("DayKey = %q", got)
	}
	if got := DayKey(day("2025-07-01")); got != "Tue Jul 01 2025" {
		t.Fatalf("DayKey = %q", got)
	}
}

func TestPrevTradingDay(t *testing.T) {
	c := newCalendar("2025-10-20")
	if got := ISOKey(c.PrevTradingDay(day("2025-10-10"))); got != "2025-10-02" {
		t.Fatalf("prev of 10-10 = %s", got)
	}
	if got := ISOKey(c.PrevTradingDay(day("2025-06-09"))); got != "2025-06-05" {
		t.Fatalf("prev of 06-09 = %s", got)
	}
}

func TestNextTradingDay(t *testing.T) {
	c := newCalendar("2025-10-20")
	if got := ISOKey(c.NextTradingDay(day("2025-10-02"))); got != "2025-10-10" {
		t.Fatalf("next of 10-02 = %s", got)
	}
	if got := ISOKey(c.NextTradingDay(day("2025-10-17"))); got != "2025-10-20" {
		t.Fatalf("next of 10-17 = %s", got)
	}

	c = newCalendar("2025-10-18")
	if got := ISOKey(c.NextTradingDay(day("2025-10-17"))); got != "2025-10-17" {
		t.Fatalf("next into the future should stay, got %s", got)
	}
}

func TestFlowEligible(t *testing.T) {
	c := newCalendar("2025-07-15")
	cases := []struct {
		date  string
		month time.Month
		want  bool
	}{
		{"2025-06-30", time.June, true},
		{"2025-06-30", time.July, false},
		{"2025-06-27", time.June, false},
		{"2025-07-05", time.July, false},
		{"2025-07-15", time.July, true},
		{"2025-07-16", time.July, false},
	}
	for _, tc := range cases {
		if got := c.FlowEligible(day(tc.date), tc.month); got != tc.want {
			t.Errorf("FlowEligible(%s, %s) = %v, want %v", tc.date, tc.month, got, tc.want)
		}
	}

	c = newCalendar("2025-10-20")
	if c.FlowEligible(day("2025-10-03"), time.October) {
		t.Error("holiday should not be eligible")
	}
}

func TestGrid(t *testing.T) {
	c := newCalendar("2025-07-15")
	m := c.Grid(GridInput{
		Year:           2025,
		Month:          time.July,
		View:           models.ViewRecord,
		Notes:          models.Notes{"Mon Jun 30 2025": {{Text: "삼성전자", Tag: "당일 시장 주도주"}}},
		Tags:           DefaultTags(),
		Sector:         "반도체",
		MonthlySectors: map[string][]string{"2025-06-30": {"바이오", "반도체"}},
		Registry:       sector.NewRegistry(),
	})

	if len(m.Weeks) != GridWeeks || len(m.Weeks[0]) != GridDays {
		t.Fatalf("grid is %dx%d", len(m.Weeks), len(m.Weeks[0]))
	}
	first := m.Weeks[0][0]
	if first.Date != "2025-06-29" || first.InMonth || !first.Sunday {
		t.Fatalf("first cell = %+v", first)
	}
	june30 := m.Weeks[0][1]
	if june30.Highlight != "#ff94354D" {
		t.Errorf("highlight = %q", june30.Highlight)
	}
	if june30.FlowEligible {
		t.Error("out-of-month day should not be flow eligible")
	}
	if len(june30.Notes) != 1 || june30.Notes[0].Background != "bg-sky-300" || !june30.Notes[0].Bold {
		t.Errorf("notes = %+v", june30.Notes)
	}
	if last := m.Weeks[5][6]; last.Date != "2025-08-09" {
		t.Errorf("last cell = %s", last.Date)
	}

	june := c.Grid(GridInput{Year: 2025, Month: time.June, View: models.ViewSchedule})
	if june.Weeks[0][0].Date != "2025-06-01" {
		t.Fatalf("june starts at %s", june.Weeks[0][0].Date)
	}
	if june.Weeks[0][2].Holiday != "대통령 선거일" {
		t.Errorf("06-03 holiday = %q", june.Weeks[0][2].Holiday)
	}
	if len(june.Holidays) != 2 {
		t.Errorf("june holidays = %+v", june.Holidays)
	}
}

func TestTagStyles(t *testing.T) {
	tags := DefaultTags()
	hot := tags.Style(models.ViewRecord, 0, models.Note{Text: "x", Tag: "단기과열"})
	if hot.Prefix != "열" || hot.PrefixBg != "#ffff00" || hot.PrefixText != "#ff0000" || hot.Bold || hot.Background != "" {
		t.Errorf("단기과열 = %+v", hot)
	}
	other := tags.Style(models.ViewSchedule, 0, models.Note{Tag: TagOther})
	if other.Bold {
		t.Error("기타 should not be bold")
	}
	event := tags.Style(models.ViewSchedule, 0, models.Note{Tag: TagEvent})
	if !event.LightText || event.Background != "bg-rose-500" {
		t.Errorf("이벤트 = %+v", event)
	}
	unknown := tags.Style(models.ViewSchedule, 0, models.Note{Tag: "없는태그"})
	if unknown.Background != "" || !unknown.Bold {
		t.Errorf("unknown = %+v", unknown)
	}
}

func testBoard() *Board {
	fetch := func(ctx context.Context, view models.CalendarView) models.Notes {
		return models.Notes{
			"Mon Jun 30 2025": {{Text: "a"}, {Text: "b"}, {Text: "c"}},
			"Tue Jul 01 2025": {{Text: "d"}},
		}
	}
	return NewBoard(fetch, logger.Discard())
}

func texts(notes []models.Note) string {
	var parts []string
	for _, n := range notes {
		parts = append(parts, n.Text)
	}
	return strings.Join(parts, ",")
}

func TestBoardReorder(t *testing.T) {
	ctx := context.Background()
	b := testBoard()
	const key = "Mon Jun 30 2025"

	changed, err := b.Reorder(ctx, models.ViewSchedule, Move{SourceDay: key, SourceIndex: 0, TargetDay: key, TargetIndex: 2})
	if err != nil || !changed {
		t.Fatalf("reorder: %v, %v", changed, err)
	}
	if got := texts(b.Notes(ctx, models.ViewSchedule)[key]); got != "b,c,a" {
		t.Fatalf("after reorder = %s", got)
	}

	noops := []Move{
		{SourceDay: key, SourceIndex: 1, TargetDay: "Tue Jul 01 2025", TargetIndex: 0},
		{SourceDay: key, SourceIndex: 1, TargetDay: key, TargetIndex: 1},
		{SourceDay: "Wed Jul 02 2025", SourceIndex: 0, TargetDay: "Wed Jul 02 2025", TargetIndex: 1},
	}
	for _, mv := range noops {
		if changed, err := b.Reorder(ctx, models.ViewSchedule, mv); changed || err != nil {
			t.Errorf("%+v: changed=%v err=%v", mv, changed, err)
		}
	}
	if got := texts(b.Notes(ctx, models.ViewSchedule)[key]); got != "b,c,a" {
		t.Fatalf("no-op moves changed notes: %s", got)
	}

	_, err = b.Reorder(ctx, models.ViewSchedule, Move{SourceDay: key, SourceIndex: 0, TargetDay: key, TargetIndex: 7})
	if !errors.Is(err, ErrNoSuchNote) {
		t.Fatalf("err = %v", err)
	}
}

func TestBoardEditDeleteExport(t *testing.T) {
	ctx := context.Background()
	b := testBoard()
	const key = "Mon Jun 30 2025"

	if err := b.Edit(ctx, models.ViewRecord, key, 1, "<b>"); err != nil {
		t.Fatal(err)
	}
	if err := b.Delete(ctx, models.ViewRecord, key, 0); err != nil {
		t.Fatal(err)
	}
	if got := texts(b.Notes(ctx, models.ViewRecord)[key]); got != "<b>,c" {
		t.Fatalf("notes = %s", got)
	}
	if err := b.Delete(ctx, models.ViewRecord, "nope", 0); !errors.Is(err, ErrNoSuchNote) {
		t.Fatalf("err = %v", err)
	}

	// views are independent
	if got := texts(b.Notes(ctx, models.ViewSchedule)[key]); got != "a,b,c" {
		t.Fatalf("schedule notes = %s", got)
	}

	out, err := b.Export(ctx, models.ViewRecord)
	if err != nil {
		t.Fatal(err)
	}
	s := string(out)
	if !strings.HasPrefix(s, "{\n  \"Mon Jun 30 2025\": [") || !strings.Contains(s, `"text": "<b>"`) {
		t.Fatalf("export = %s", s)
	}
	if strings.HasSuffix(s, "\n") {
		t.Fatal("export should not end with a newline")
	}

	b.Reload(models.ViewRecord)
	if got := texts(b.Notes(ctx, models.ViewRecord)[key]); got != "a,b,c" {
		t.Fatalf("reload = %s", got)
	}
}
