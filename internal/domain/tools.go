package domain

// Mnemonic is a memory aid generated for a subject.
type Mnemonic struct {
	Phrase      string `json:"phrase"`
	Meaning     string `json:"meaning"`
	Explanation string `json:"explanation"`
}

// EssayFeedback is the grading of a handwritten essay photo.
type EssayFeedback struct {
	Grade        string   `json:"grade"`
	Pros         []string `json:"pros"`
	Cons         []string `json:"cons"`
	Tips         string   `json:"tips"`
	FullAnalysis string   `json:"fullAnalysis"`
}

// Media is an inline upload or generated file, base64 encoded.
type Media struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

// Flashcard is one active-recall card.
type Flashcard struct {
	Front string `json:"front"`
	Back  string `json:"back"`
}

// StudyPlanItem is one block of a daily study cycle.
type StudyPlanItem struct {
	Period   string `json:"period"`
	Activity string `json:"activity"`
	Focus    string `json:"focus"`
}

// NewsSource is a web page the news digest was grounded on.
type NewsSource struct {
	Title string `json:"title"`
	URI   string `json:"uri"`
}

// NewsDigest lists open and requested exams found by a web-grounded search.
type NewsDigest struct {
	Text    string       `json:"text"`
	Sources []NewsSource `json:"sources"`
}
