// ABOUTME: User-facing reply texts in English and German
// ABOUTME: Selected by the bot.language setting

package bot

import (
	"fmt"

	"github.com/2389/pulselog/internal/vitals"
)

// Catalog holds every reply the bot sends.
type Catalog struct {
	Help            string
	PromptSystolic  string
	PromptDiastolic string
	PromptPulse     string
	Invalid         string // min, max
	Saved           string // systolic, diastolic, pulse
	Cancelled       string
	NothingToCancel string
	Restarted       string
	NoSession       string
	NoData          string
	SaveFailed      string
	HistoryFailed   string
	ExportFailed    string
	UnknownCommand  string // command
	DateHeader      string
}

var english = Catalog{
	Help: "I record your blood pressure.\n\n" +
		"/newmeasurement - record a new measurement\n" +
		"/showmeasurements - show your latest measurements\n" +
		"/export - download all measurements as CSV\n" +
		"/cancel - cancel the measurement in progress",
	PromptSystolic:  "Please enter the systolic value (SYS):",
	PromptDiastolic: "Please enter the diastolic value (DIA):",
	PromptPulse:     "Please enter your pulse:",
	Invalid:         "Invalid value! Please enter a whole number between %d and %d. Cancel with /cancel",
	Saved:           "Thanks! Your values were saved:\nSYS: %d, DIA: %d, Pulse: %d",
	Cancelled:       "Measurement cancelled.",
	NothingToCancel: "There is no measurement to cancel.",
	Restarted:       "The unfinished measurement was discarded.",
	NoSession:       "Send /newmeasurement to record a measurement, or /help for all commands.",
	NoData:          "No measurements found.",
	SaveFailed:      "Sorry, your measurement could not be saved. Please try again later with /newmeasurement.",
	HistoryFailed:   "Sorry, your measurements could not be loaded right now.",
	ExportFailed:    "Sorry, the export could not be created right now.",
	UnknownCommand:  "Unknown command %s. Send /help for all commands.",
	DateHeader:      "Date/Time",
}

var german = Catalog{
	Help: "Ich speichere Ihre Blutdruckwerte.\n\n" +
		"/newmeasurement - neue Messung erfassen\n" +
		"/showmeasurements - letzte Messungen anzeigen\n" +
		"/export - alle Messungen als CSV herunterladen\n" +
		"/cancel - laufende Messung abbrechen",
	PromptSystolic:  "Bitte geben Sie den systolischen Wert (SYS) ein:",
	PromptDiastolic: "Bitte geben Sie den diastolischen Wert (DIA) ein:",
	PromptPulse:     "Bitte geben Sie den Pulswert ein:",
	Invalid:         "Ungültiger Wert! Bitte geben Sie einen numerischen Wert zwischen %d und %d ein. Abbruch mit /cancel",
	Saved:           "Danke! Ihre Werte wurden gespeichert:\nSYS: %d, DIA: %d, Puls: %d",
	Cancelled:       "Messung abgebrochen.",
	NothingToCancel: "Es läuft keine Messung.",
	Restarted:       "Die unvollständige Messung wurde verworfen.",
	NoSession:       "Mit /newmeasurement erfassen Sie eine Messung, /help zeigt alle Befehle.",
	NoData:          "Keine Messwerte gefunden.",
	SaveFailed:      "Die Messung konnte leider nicht gespeichert werden. Bitte später erneut mit /newmeasurement versuchen.",
	HistoryFailed:   "Die Messwerte konnten gerade nicht geladen werden.",
	ExportFailed:    "Der Export konnte gerade nicht erstellt werden.",
	UnknownCommand:  "Unbekannter Befehl %s. /help zeigt alle Befehle.",
	DateHeader:      "Datum/Zeit",
}

// CatalogFor returns the catalog for a language code, English by default.
func CatalogFor(lang string) Catalog {
	if lang == "de" {
		return german
	}
	return english
}

// Prompt returns the question asking for field.
func (c Catalog) Prompt(field vitals.Field) string {
	switch field {
	case vitals.Diastolic:
		return c.PromptDiastolic
	case vitals.Pulse:
		return c.PromptPulse
	default:
		return c.PromptSystolic
	}
}

// Rejection explains the accepted range for field.
func (c Catalog) Rejection(field vitals.Field) string {
	r := field.Range()
	return fmt.Sprintf(c.Invalid, r.Min, r.Max)
}

// Confirmation echoes a saved reading.
func (c Catalog) Confirmation(systolic, diastolic, pulse int) string {
	return fmt.Sprintf(c.Saved, systolic, diastolic, pulse)
}
