package server

import (
	"fmt"
	"html/template"
	"math"
	"net/url"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/bryan-buckman/talkshelf/internal/model"
)

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"add":       func(a, b int) int { return a + b },
		"pubDate":   pubDate,
		"ago":       ago,
		"clock":     clock,
		"left":      timeLeft,
		"percent":   percent,
		"withLimit": withLimit,
	}
}

// pubDate renders an API date as dd/mm/yyyy. Unparseable dates are shown as delivered.
func pubDate(raw string) string {
	t, err := time.Parse(model.DateLayout, raw)
	if err != nil {
		return raw
	}
	return t.Format("02/01/2006")
}

func ago(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return humanize.Time(t)
}

// clock formats seconds as m:ss.
func clock(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		seconds = 0
	}
	total := int(seconds)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

// timeLeft formats the unplayed part of a record as "12m 05s left".
func timeLeft(r model.PlaybackRecord) string {
	total := int(r.Remaining())
	return fmt.Sprintf("%dm %02ds left", total/60, total%60)
}

func percent(r model.PlaybackRecord) string {
	return strconv.FormatFloat(r.Percent(), 'f', 1, 64)
}

// withLimit returns the current query string with limit replaced.
func withLimit(q url.Values, limit int) string {
	next := url.Values{}
	for k, v := range q {
		next[k] = v
	}
	next.Set("limit", strconv.Itoa(limit))
	return "?" + next.Encode()
}
