package mood

// scoreOrder is the category order used to break keyword score ties.
var scoreOrder = []Mood{Happy, Sad, Anxious, Angry, Excited}

var keywords = map[Mood][]string{
	Sad: {
		"sad", "depressed", "down", "unhappy", "miserable", "upset",
		"crying", "tears", "lonely", "heartbroken", "disappointed",
		"hopeless", "gloomy", "melancholy", "blue", "dejected",
		"terrible", "awful", "horrible", "bad day", "feeling down",
	},
	Anxious: {
		"anxious", "worried", "stressed", "nervous", "scared", "afraid",
		"panic", "fear", "overwhelming", "concerned", "tense", "uneasy",
		"restless", "frightened", "terrified", "paranoid", "stressed out",
	},
	Angry: {
		"angry", "mad", "furious", "annoyed", "irritated", "frustrated",
		"rage", "hate", "pissed", "livid", "outraged", "infuriated",
		"disgusted", "resentful", "bitter", "hostile",
	},
	Happy: {
		"happy", "glad", "joyful", "pleased", "delighted", "cheerful",
		"content", "satisfied", "grateful", "blessed", "good", "great",
		"wonderful", "nice", "fine", "better", "positive", "smile", "smiling",
	},
	Excited: {
		"excited", "thrilled", "amazing", "awesome", "fantastic",
		"incredible", "love", "excellent", "brilliant", "spectacular",
		"wonderful", "elated", "ecstatic", "pumped", "energized",
		"can't wait", "looking forward",
	},
}
