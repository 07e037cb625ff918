package domain

import "time"

// SourceItem is a candidate scraped from a listing page. It seeds an Article.
type SourceItem struct {
	Title        string
	Link         string
	Author       string
	PublishedAt  string
	ThumbnailURL string
	Site         string
}

// Article is the original scraped copy, unique by Link.
type Article struct {
	ID               string    `json:"id" bson:"_id"`
	Title            string    `json:"title" bson:"title"`
	Link             string    `json:"link" bson:"link"`
	Author           string    `json:"author" bson:"author"`
	PublishedAt      string    `json:"publishedAt" bson:"publishedAt"`
	ThumbnailURL     string    `json:"thumbnailUrl" bson:"thumbnailUrl"`
	SourceImageURL   string    `json:"sourceImageUrl" bson:"sourceImageUrl"`
	CDNImageURL      string    `json:"cdnImageUrl" bson:"cdnImageUrl"`
	CDNImagePublicID string    `json:"cdnImagePublicId" bson:"cdnImagePublicId"`
	RawContent       string    `json:"rawContent" bson:"rawContent"`
	CreatedAt        time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt" bson:"updatedAt"`
}

// RewriteStatus classifies a rewrite against the target word range.
type RewriteStatus string

const (
	RewriteFull    RewriteStatus = "full"
	RewriteUnder   RewriteStatus = "under"
	RewriteOver    RewriteStatus = "over"
	RewritePending RewriteStatus = "pending"
)

// Valid reports whether s is one of the known statuses.
func (s RewriteStatus) Valid() bool {
	switch s {
	case RewriteFull, RewriteUnder, RewriteOver, RewritePending:
		return true
	}
	return false
}

// RewriteRecord is the single live rewrite of an Article, keyed by ArticleID.
type RewriteRecord struct {
	ID               string        `json:"id" bson:"_id"`
	ArticleID        string        `json:"articleId" bson:"articleId"`
	SourceTitle      string        `json:"sourceTitle" bson:"sourceTitle"`
	SourceLink       string        `json:"sourceLink" bson:"sourceLink"`
	SourceAuthor     string        `json:"sourceAuthor" bson:"sourceAuthor"`
	SourceDate       string        `json:"sourceDate" bson:"sourceDate"`
	Title            string        `json:"title" bson:"title"`
	BodyMarkdown     string        `json:"bodyMarkdown" bson:"bodyMarkdown"`
	GeneratorModel   string        `json:"generatorModel" bson:"generatorModel"`
	PromptUsed       string        `json:"promptUsed" bson:"promptUsed"`
	TargetKeywords   []string      `json:"targetKeywords" bson:"targetKeywords"`
	MetaDescription  string        `json:"metaDescription" bson:"metaDescription"`
	WordCount        int           `json:"wordCount" bson:"wordCount"`
	Attempts         int           `json:"attempts" bson:"attempts"`
	PromptTokens     int           `json:"promptTokens" bson:"promptTokens"`
	CompletionTokens int           `json:"completionTokens" bson:"completionTokens"`
	TotalTokens      int           `json:"totalTokens" bson:"totalTokens"`
	AIScore          float64       `json:"aiScore" bson:"aiScore"`
	Status           RewriteStatus `json:"status" bson:"status"`
	CDNImageURL      string        `json:"cdnImageUrl" bson:"cdnImageUrl"`
	CDNImagePublicID string        `json:"cdnImagePublicId" bson:"cdnImagePublicId"`
	CreatedAt        time.Time     `json:"createdAt" bson:"createdAt"`
	UpdatedAt        time.Time     `json:"updatedAt" bson:"updatedAt"`
}

// HumanizeSettings mirrors the knobs reported back by the humanizer service.
type HumanizeSettings struct {
	UsePassive          bool    `json:"use_passive" bson:"usePassive"`
	UseSynonyms         bool    `json:"use_synonyms" bson:"useSynonyms"`
	PPassive            float64 `json:"p_passive" bson:"pPassive"`
	PSynonymReplacement float64 `json:"p_synonym_replacement" bson:"pSynonymReplacement"`
	PAcademicTransition float64 `json:"p_academic_transition" bson:"pAcademicTransition"`
}

// HumanizeRecord is one humanized copy per (ArticleID, RewriteID).
type HumanizeRecord struct {
	ID                     string            `json:"id" bson:"_id"`
	ArticleID              string            `json:"articleId" bson:"articleId"`
	RewriteID              string            `json:"rewriteId" bson:"rewriteId"`
	SourceTitle            string            `json:"sourceTitle" bson:"sourceTitle"`
	SourceLink             string            `json:"sourceLink" bson:"sourceLink"`
	InputText              string            `json:"inputText" bson:"inputText"`
	InputWordCount         int               `json:"inputWordCount" bson:"inputWordCount"`
	InputSentenceCount     int               `json:"inputSentenceCount" bson:"inputSentenceCount"`
	HumanizedText          string            `json:"humanizedText" bson:"humanizedText"`
	OutputWordCount        int               `json:"outputWordCount" bson:"outputWordCount"`
	OutputSentenceCount    int               `json:"outputSentenceCount" bson:"outputSentenceCount"`
	ReadabilityImprovement float64           `json:"readabilityImprovement" bson:"readabilityImprovement"`
	SettingsUsed           *HumanizeSettings `json:"settingsUsed,omitempty" bson:"settingsUsed,omitempty"`
	AIScore                float64           `json:"aiScore" bson:"aiScore"`
	CDNImageURL            string            `json:"cdnImageUrl" bson:"cdnImageUrl"`
	CDNImagePublicID       string            `json:"cdnImagePublicId" bson:"cdnImagePublicId"`
	CreatedAt              time.Time         `json:"createdAt" bson:"createdAt"`
	UpdatedAt              time.Time         `json:"updatedAt" bson:"updatedAt"`
}

// AppConfig is the persisted generative-API credential. Version grows on every write.
type AppConfig struct {
	GenerativeAPIKey string    `json:"-" bson:"generativeApiKey"`
	GenerativeModel  string    `json:"model" bson:"generativeModel"`
	Version          int       `json:"version" bson:"version"`
	UpdatedAt        time.Time `json:"updatedAt" bson:"updatedAt"`
}

// HasCredentials reports whether a rewrite can be attempted with this config.
func (c AppConfig) HasCredentials() bool {
	return c.GenerativeAPIKey != "" && c.GenerativeModel != ""
}

// Page bounds a reverse-chronological listing.
type Page struct {
	Limit  int
	Offset int
}

// RewriteFilter narrows rewrite listings.
type RewriteFilter struct {
	Status RewriteStatus
	Page   Page
}
