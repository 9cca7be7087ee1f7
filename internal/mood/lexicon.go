package mood

import (
	"math"
	"strings"
	"unicode"
)

// Lexicon is a word-level polarity scorer. Each sentiment word contributes
// its polarity and subjectivity; an intensifier right before it scales
// both, a negation flips and halves the polarity. The result is the mean
// over all sentiment words.
type Lexicon struct {
	words        map[string]entry
	intensifiers map[string]float64
	negations    map[string]bool
}

type entry struct {
	polarity     float64
	subjectivity float64
}

// NewLexicon returns the built-in English lexicon.
func NewLexicon() *Lexicon {
	return &Lexicon{words: lexicon, intensifiers: intensifiers, negations: negations}
}

func (l *Lexicon) Score(text string) (polarity, subjectivity float64) {
	tokens := tokenize(text)

	var sumP, sumS float64
	var n int
	scale := 1.0
	negate := false

	for _, tok := range tokens {
		if m, ok := l.intensifiers[tok]; ok {
			scale *= m
			continue
		}
		if l.negations[tok] || strings.HasSuffix(tok, "n't") {
			negate = true
			continue
		}
		e, ok := l.words[tok]
		if !ok {
			continue
		}
		p := e.polarity * scale
		s := e.subjectivity * scale
		if negate {
			p *= -0.5
		}
		sumP += math.Max(-1, math.Min(1, p))
		sumS += math.Min(1, s)
		n++
		scale = 1.0
		negate = false
	}

	if n == 0 {
		return 0, 0
	}
	return sumP / float64(n), sumS / float64(n)
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\''
	})
}

var intensifiers = map[string]float64{
	"very":       1.3,
	"really":     1.3,
	"so":         1.3,
	"super":      1.3,
	"extremely":  1.5,
	"incredibly": 1.5,
	"too":        1.2,
	"quite":      1.1,
	"pretty":     1.1,
	"totally":    1.3,
	"absolutely": 1.4,
}

var negations = map[string]bool{
	"not":   true,
	"no":    true,
	"never": true,
	"nor":   true,
	"cant":  true,
	"dont":  true,
	"wont":  true,
}

var lexicon = map[string]entry{
	// positive
	"happy":       {0.8, 1.0},
	"glad":        {0.5, 1.0},
	"joyful":      {0.8, 0.9},
	"pleased":     {0.5, 1.0},
	"delighted":   {0.7, 0.9},
	"cheerful":    {0.7, 0.8},
	"content":     {0.4, 0.6},
	"satisfied":   {0.5, 1.0},
	"grateful":    {0.6, 0.8},
	"thankful":    {0.6, 0.8},
	"blessed":     {0.5, 0.7},
	"good":        {0.7, 0.6},
	"great":       {0.8, 0.75},
	"wonderful":   {1.0, 1.0},
	"nice":        {0.6, 1.0},
	"fine":        {0.4, 0.5},
	"better":      {0.5, 0.5},
	"best":        {1.0, 0.3},
	"positive":    {0.2, 0.5},
	"lovely":      {0.5, 0.75},
	"love":        {0.5, 0.6},
	"like":        {0.2, 0.3},
	"fun":         {0.3, 0.2},
	"beautiful":   {0.85, 1.0},
	"perfect":     {1.0, 1.0},
	"calm":        {0.3, 0.75},
	"relaxed":     {0.3, 0.6},
	"excited":     {0.4, 0.75},
	"thrilled":    {0.6, 0.9},
	"amazing":     {0.6, 0.9},
	"awesome":     {1.0, 1.0},
	"fantastic":   {0.4, 0.9},
	"incredible":  {0.9, 0.9},
	"excellent":   {1.0, 1.0},
	"brilliant":   {0.9, 1.0},
	"spectacular": {0.6, 0.9},
	"ecstatic":    {0.9, 1.0},
	"proud":       {0.8, 1.0},
	"cool":        {0.35, 0.65},
	// negative
	"sad":          {-0.5, 1.0},
	"unhappy":      {-0.6, 0.9},
	"depressed":    {-0.7, 0.9},
	"miserable":    {-1.0, 1.0},
	"upset":        {-0.5, 0.8},
	"lonely":       {-0.5, 0.9},
	"heartbroken":  {-0.8, 1.0},
	"disappointed": {-0.75, 0.75},
	"hopeless":     {-0.8, 0.9},
	"gloomy":       {-0.6, 0.8},
	"down":         {-0.15, 0.3},
	"bad":          {-0.7, 0.67},
	"worse":        {-0.4, 0.6},
	"worst":        {-1.0, 1.0},
	"terrible":     {-1.0, 1.0},
	"awful":        {-1.0, 1.0},
	"horrible":     {-1.0, 1.0},
	"tired":        {-0.4, 0.7},
	"exhausted":    {-0.5, 0.8},
	"sick":         {-0.7, 0.9},
	"hurt":         {-0.5, 0.8},
	"worried":      {-0.4, 0.8},
	"anxious":      {-0.4, 0.9},
	"nervous":      {-0.3, 0.8},
	"stressed":     {-0.5, 0.8},
	"scared":       {-0.6, 0.9},
	"afraid":       {-0.6, 0.9},
	"terrified":    {-0.9, 1.0},
	"angry":        {-0.5, 1.0},
	"mad":          {-0.6, 1.0},
	"furious":      {-0.9, 1.0},
	"annoyed":      {-0.4, 0.8},
	"irritated":    {-0.4, 0.8},
	"frustrated":   {-0.6, 0.9},
	"hate":         {-0.8, 0.9},
	"stupid":       {-0.8, 1.0},
	"boring":       {-1.0, 1.0},
	"wrong":        {-0.5, 0.9},
	"difficult":    {-0.5, 1.0},
	"hard":         {-0.3, 0.5},
	"broken":       {-0.4, 0.4},
}
