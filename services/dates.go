package services

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Vorverarbeitung für Eingaben, die der generische Parser nicht versteht.
var (
	seasonYearRE    = regexp.MustCompile(`(?i)^(?:(?:winter|spring|summer|fall|autumn)/?)+\s(\d{4})$`)
	bareYearRE      = regexp.MustCompile(`^(\d{4})$`)
	dashedDateRE    = regexp.MustCompile(`^(\d{2})-(\d{2})-(\d{2}(?:\d{2})?)(?:\s.*?|)$`)
	slashedDateRE   = regexp.MustCompile(`^(\d{2})/(\d{2})/(\d{2}(?:\d{2})?)(?:\s.*?|)$`)
	relIntervalRE   = regexp.MustCompile(`^\+?\s*(\d+)\s*(day|days|week|weeks|month|months|year|years)$`)
)

// dateLayouts sind die Formate, die der generische Kalender-Parser
// nacheinander versucht (Ersatz für strtotime).
var dateLayouts = []string{
	"Jan 2006",
	"January 2006",
	"01/02/2006",
	"1/2/2006",
	"01/02/06",
	"2006-01-02",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"2 Jan 2006",
	"02.01.2006",
	"2006",
}

// ResolveYearIssued ermittelt das Erscheinungsjahr aus Freitext.
// Die Funktion meldet nie einen Fehler: Unparsbares fällt bewusst (und
// verlustbehaftet) auf das aktuelle Jahr zurück.
func ResolveYearIssued(entered string, now time.Time) string {
	s := strings.TrimSpace(entered)

	// Saisonangabe + Jahr, z.B. "Fall 2020" oder "Fall/Winter 2020".
	if m := seasonYearRE.FindStringSubmatch(s); m != nil {
		s = "Jan " + m[1]
	}

	// Nur ein vierstelliges Jahr.
	if m := bareYearRE.FindStringSubmatch(s); m != nil {
		s = "Jan " + m[1]
	}

	// Mehrdeutige Bindestrich-Daten auf die Slash-Form bringen.
	if m := dashedDateRE.FindStringSubmatch(s); m != nil {
		s = fmt.Sprintf("%s/%s/%s", m[1], m[2], m[3])
	}

	// Europäisches d/m/y: erster Bestandteil > 12 heißt Tag zuerst.
	if m := slashedDateRE.FindStringSubmatch(s); m != nil {
		if first, _ := strconv.Atoi(m[1]); first > 12 {
			s = fmt.Sprintf("%s/%s/%s", m[2], m[1], m[3])
		}
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006")
		}
	}

	return now.Format("2006")
}

// ParseRelativeInterval liest ein "today + N"-Intervall wie "6 months"
// oder "+2 years" und gibt das Enddatum relativ zu now zurück.
func ParseRelativeInterval(length string, now time.Time) (time.Time, error) {
	m := relIntervalRE.FindStringSubmatch(strings.ToLower(strings.TrimSpace(length)))
	if m == nil {
		return time.Time{}, &ValidationError{Field: "embargo_length", Reason: "is not a recognizable interval"}
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return time.Time{}, &ValidationError{Field: "embargo_length", Reason: "is not a recognizable interval"}
	}
	switch strings.TrimSuffix(m[2], "s") {
	case "day":
		return now.AddDate(0, 0, n), nil
	case "week":
		return now.AddDate(0, 0, 7*n), nil
	case "month":
		return now.AddDate(0, n, 0), nil
	case "year":
		return now.AddDate(n, 0, 0), nil
	}
	return time.Time{}, &ValidationError{Field: "embargo_length", Reason: "is not a recognizable interval"}
}
