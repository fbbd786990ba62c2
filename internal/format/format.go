// Package format holds the pure display helpers shared by every renderer.
package format

import (
	"fmt"
	"html"
	"math"
	"strconv"
	"time"
)

// Memory renders a megabyte count as "512 MB" or "23.7 GB".
func Memory(mb float64) string {
	if mb >= 1024 {
		return fmt.Sprintf("%.1f GB", mb/1024)
	}
	return fmt.Sprintf("%d MB", int64(math.Round(mb)))
}

// Duration renders minutes since an event, floored to the largest unit.
func Duration(minutes float64) string {
	switch {
	case minutes < 1:
		return "just now"
	case minutes < 60:
		return fmt.Sprintf("%dm ago", int64(math.Floor(minutes)))
	case minutes < 1440:
		return fmt.Sprintf("%dh ago", int64(math.Floor(minutes/60)))
	default:
		return fmt.Sprintf("%dd ago", int64(math.Floor(minutes/1440)))
	}
}

type Level string

const (
	LevelFree    Level = "free"
	LevelPartial Level = "partial"
	LevelBusy    Level = "busy"
)

// UsageLevel buckets a percentage. 30 and 80 belong to the higher bucket.
func UsageLevel(percent float64) Level {
	switch {
	case percent < 30:
		return LevelFree
	case percent < 80:
		return LevelPartial
	default:
		return LevelBusy
	}
}

type Availability string

const (
	AllFree  Availability = "all-free"
	SomeFree Availability = "some-free"
	NoneFree Availability = "none-free"
)

func AvailabilityLevel(free, total int) Availability {
	switch {
	case free == total:
		return AllFree
	case free > 0:
		return SomeFree
	default:
		return NoneFree
	}
}

// EscapeHTML stringifies v and escapes it for insertion into markup.
func EscapeHTML(v any) string {
	if v == nil {
		return ""
	}
	return html.EscapeString(fmt.Sprint(v))
}

// RangeLabel describes a history window, e.g. "last 24h" or "last 7 days".
func RangeLabel(hours int) string {
	if hours <= 24 {
		return fmt.Sprintf("last %dh", hours)
	}
	return fmt.Sprintf("last %d days", int(math.Round(float64(hours)/24)))
}

func Percent(v float64) string {
	return fmt.Sprintf("%d%%", int64(math.Round(v)))
}

// Number prints v with as few digits as needed: 2, 2.5, 12.25.
func Number(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func Clock(t time.Time) string {
	return "Updated: " + t.Format("15:04:05")
}
