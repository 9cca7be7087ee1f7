// Package mood estimates the user's emotional state from a single message
// and turns it into a short directive for the language model.
package mood

import (
	"math"
	"strings"
)

// Mood is the detected emotional category.
type Mood string

const (
	Happy   Mood = "happy"
	Sad     Mood = "sad"
	Anxious Mood = "anxious"
	Angry   Mood = "angry"
	Neutral Mood = "neutral"
	Excited Mood = "excited"
)

// DefaultSensitivity is the keyword confidence below which the polarity
// score decides the mood.
const DefaultSensitivity = 0.5

// Assessment is the analysis of one message.
type Assessment struct {
	Mood         Mood    `json:"mood"`
	Polarity     float64 `json:"polarity"`
	Subjectivity float64 `json:"subjectivity"`
	Intensity    float64 `json:"intensity"`
	Confidence   float64 `json:"confidence"`
}

// Scorer maps text to a polarity in [-1,1] and a subjectivity in [0,1].
type Scorer interface {
	Score(text string) (polarity, subjectivity float64)
}

// Analyzer combines keyword tables with a polarity scorer. It is safe for
// concurrent use.
type Analyzer struct {
	sensitivity float64
	scorer      Scorer
}

// New returns an Analyzer using the built-in lexicon scorer.
func New(sensitivity float64) *Analyzer {
	return NewWithScorer(sensitivity, NewLexicon())
}

// NewWithScorer returns an Analyzer using s for polarity and subjectivity.
func NewWithScorer(sensitivity float64, s Scorer) *Analyzer {
	return &Analyzer{sensitivity: sensitivity, scorer: s}
}

// Analyze scores text. Blank input is neutral with zero confidence.
func (a *Analyzer) Analyze(text string) Assessment {
	if strings.TrimSpace(text) == "" {
		return Assessment{Mood: Neutral}
	}

	lower := strings.ToLower(text)
	polarity, subjectivity := a.scorer.Score(lower)
	polarity = clamp(polarity, -1, 1)
	subjectivity = clamp(subjectivity, 0, 1)

	m, confidence := detectKeywords(lower)

	if confidence < a.sensitivity {
		switch {
		case polarity > 0.3:
			m, confidence = Happy, polarity*0.7
		case polarity < -0.3:
			m, confidence = Sad, math.Abs(polarity)*0.7
		default:
			m, confidence = Neutral, 0.5
		}
	}

	return Assessment{
		Mood:         m,
		Polarity:     polarity,
		Subjectivity: subjectivity,
		Intensity:    math.Abs(polarity) * subjectivity,
		Confidence:   confidence,
	}
}

// detectKeywords scores every category against the keyword table. A
// keyword standing as a whole word scores 2, inside another word 1.
func detectKeywords(lower string) (Mood, float64) {
	padded := " " + lower + " "
	words := len(strings.Fields(lower))

	best, bestScore := Neutral, 0
	for _, m := range scoreOrder {
		score := 0
		for _, kw := range keywords[m] {
			if !strings.Contains(lower, kw) {
				continue
			}
			if strings.Contains(padded, " "+kw+" ") {
				score += 2
			} else {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = m, score
		}
	}
	if bestScore == 0 {
		return Neutral, 0
	}
	return best, math.Min(1, float64(bestScore)/math.Max(3, float64(words)*0.3))
}

// IsNegative reports whether m is sad, anxious or angry.
func IsNegative(m Mood) bool {
	return m == Sad || m == Anxious || m == Angry
}

// IsPositive reports whether m is happy or excited.
func IsPositive(m Mood) bool {
	return m == Happy || m == Excited
}

// Describe returns the short status line shown for m.
func Describe(m Mood) string {
	switch m {
	case Happy:
		return "You seem happy!"
	case Sad:
		return "You seem down"
	case Anxious:
		return "You seem worried"
	case Angry:
		return "You seem upset"
	case Neutral:
		return "Neutral mood"
	case Excited:
		return "You seem excited!"
	}
	return "Unknown mood"
}

// EmpathyContext returns the directive injected ahead of the user's next
// message, or "" when no special tone is needed.
func EmpathyContext(a Assessment) string {
	switch a.Mood {
	case Sad:
		if a.Intensity > 0.6 {
			return "The user seems very sad or upset. Be extra supportive, empathetic, and try to cheer them up gently. Offer comfort and encouragement."
		}
		return "The user seems a bit down. Be supportive and friendly. Try to lift their spirits."
	case Anxious:
		if a.Intensity > 0.6 {
			return "The user seems very anxious or worried. Be calm, reassuring, and supportive. Help them feel safe and understood."
		}
		return "The user seems somewhat worried. Be reassuring and provide calm, helpful responses."
	case Angry:
		return "The user seems frustrated or upset. Be understanding, patient, and avoid being dismissive. Acknowledge their feelings."
	case Excited:
		return "The user seems very excited! Match their energy with enthusiasm and positivity!"
	case Happy:
		return "The user seems happy! Be cheerful and maintain the positive mood."
	}
	return ""
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
