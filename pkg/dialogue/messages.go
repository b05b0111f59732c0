package dialogue

import (
	"strings"

	"github.com/harunnryd/sprachbot/pkg/validate"
)

// Messages holds every sentence the bot says. Templates may use {field} and {value}.
type Messages struct {
	Welcome             string            `mapstructure:"welcome"`
	Ask                 string            `mapstructure:"ask"`
	Repeat              string            `mapstructure:"repeat"`
	ClarifyConfirmation string            `mapstructure:"clarify_confirmation"`
	Saved               string            `mapstructure:"saved"`
	NotUnderstood       string            `mapstructure:"not_understood"`
	Completed           string            `mapstructure:"completed"`
	TranscriptionFailed string            `mapstructure:"transcription_failed"`
	AudioUnsupported    string            `mapstructure:"audio_unsupported"`
	VoiceUnavailable    string            `mapstructure:"voice_unavailable"`
	Clarify             map[string]string `mapstructure:"clarify"`
}

// DefaultMessages returns the German texts.
func DefaultMessages() Messages {
	return Messages{
		Welcome:             "Guten Tag, ich bin Ihr Sprachassistent und lege mit Ihnen ein Konto an. Sie können mir schreiben oder eine Sprachnachricht schicken.",
		Ask:                 "Ich benötige von Ihnen die folgende Info: {field}",
		Repeat:              "Ich werde {value} für das Feld {field} speichern, ist das korrekt?",
		ClarifyConfirmation: "Bitte antworten Sie mit Ja oder Nein.",
		Saved:               "Vielen Dank, Ihre Angabe wurde gespeichert.",
		NotUnderstood:       "Das habe ich leider nicht verstanden.",
		Completed:           "Vielen Dank, Ihr Account wurde erstellt.",
		TranscriptionFailed: "Ihre Sprachnachricht konnte ich leider nicht verstehen. Bitte versuchen Sie es noch einmal oder schreiben Sie mir.",
		AudioUnsupported:    "Dieses Audioformat kann ich leider nicht abspielen. Bitte schicken Sie eine andere Aufnahme oder schreiben Sie mir.",
		VoiceUnavailable:    "Eine Sprachantwort ist gerade nicht möglich, bitte lesen Sie die Nachricht oben.",
		Clarify: map[string]string{
			string(validate.RuleText):        "Bitte nennen Sie Ihre Angabe für das Feld {field} noch einmal.",
			string(validate.RuleBirthDate):   "Bitte nennen Sie Ihr Geburtsdatum im Format \"1. Januar 1990\".",
			string(validate.RulePostalCode):  "Bitte nennen Sie eine gültige Postleitzahl, zum Beispiel \"10115\".",
			string(validate.RuleCountry):     "Dieses Land kenne ich leider nicht. Bitte nennen Sie den Namen auf Deutsch, zum Beispiel \"Deutschland\".",
			string(validate.RuleEmail):       "Bitte nennen Sie eine gültige E-Mail-Adresse, zum Beispiel \"max@beispiel.de\".",
			string(validate.RuleHouseNumber): "Bitte nennen Sie eine gültige Hausnummer, zum Beispiel \"12a\".",
			string(validate.RulePhone):       "Bitte nennen Sie eine gültige Mobilfunknummer, zum Beispiel \"0151 23456789\".",
		},
	}
}

// WithDefaults fills every blank message from DefaultMessages.
func (m Messages) WithDefaults() Messages {
	d := DefaultMessages()
	fill := func(v *string, def string) {
		if strings.TrimSpace(*v) == "" {
			*v = def
		}
	}
	fill(&m.Welcome, d.Welcome)
	fill(&m.Ask, d.Ask)
	fill(&m.Repeat, d.Repeat)
	fill(&m.ClarifyConfirmation, d.ClarifyConfirmation)
	fill(&m.Saved, d.Saved)
	fill(&m.NotUnderstood, d.NotUnderstood)
	fill(&m.Completed, d.Completed)
	fill(&m.TranscriptionFailed, d.TranscriptionFailed)
	fill(&m.AudioUnsupported, d.AudioUnsupported)
	fill(&m.VoiceUnavailable, d.VoiceUnavailable)
	clarify := make(map[string]string, len(d.Clarify)+len(m.Clarify))
	for k, v := range d.Clarify {
		clarify[k] = v
	}
	for k, v := range m.Clarify {
		if strings.TrimSpace(v) != "" {
			clarify[k] = v
		}
	}
	m.Clarify = clarify
	return m
}

func (m Messages) ask(field FieldSpec) string {
	return render(m.Ask, field.Name, "")
}

func (m Messages) repeat(field FieldSpec, value string) string {
	return render(m.Repeat, field.Name, value)
}

func (m Messages) clarify(field FieldSpec) string {
	tpl := field.Clarify
	if strings.TrimSpace(tpl) == "" {
		tpl = m.Clarify[string(field.Rule)]
	}
	if strings.TrimSpace(tpl) == "" {
		tpl = m.Clarify[string(validate.RuleText)]
	}
	return render(tpl, field.Name, "")
}

func render(tpl, field, value string) string {
	return strings.NewReplacer("{field}", field, "{value}", value).Replace(tpl)
}
