package guard

import "github.com/polzovatel/web-research-mcp/internal/browser"

// VocabularyVersion changes whenever one of the tables below does.
const VocabularyVersion = "2025.1"

// MinWordCount is the smallest visible word count a real page may have.
const MinWordCount = 10

// ChallengeMarkers are selectors only present on bot-challenge pages.
var ChallengeMarkers = []string{
	"#challenge-running",
	"#cf-challenge-running",
	"#px-captcha",
	"#ddos-protection",
	"#waf-challenge-html",
}

// SuspiciousTitlePhrases are lowercase fragments of interstitial titles.
var SuspiciousTitlePhrases = []string{
	"security check",
	"ddos protection",
	"please wait",
	"just a moment",
	"attention required",
}

// ConsentCookie pre-accepts the search engine's consent wall.
var ConsentCookie = browser.Cookie{
	Name:   "CONSENT",
	Value:  "YES+",
	Domain: ".google.com",
	Path:   "/",
}

// ConsentDomains are the regional search-engine domains where consent
// dismissal is attempted.
var ConsentDomains = []string{
	".google.de", ".google.fr", ".google.co.uk",
	".google.it", ".google.es", ".google.nl",
	".google.pl", ".google.ie", ".google.dk",
	".google.no", ".google.se", ".google.fi",
	".google.at", ".google.ch", ".google.be",
	".google.pt", ".google.gr", ".google.com.tr",
	".google.co.id", ".google.com.sg", ".google.co.th",
	".google.com.my", ".google.com.ph", ".google.com.au",
	".google.co.nz", ".google.com.vn",
	".google.com", ".google.co",
}

// ConsentContainers detect that a consent dialog is on screen at all.
var ConsentContainers = []string{
	`form:has(button[aria-label])`,
	`div[aria-modal="true"]`,
	`div[role="dialog"]`,
	`div[role="alertdialog"]`,
	`div[class*="consent"]`,
	`div[id*="consent"]`,
	`div[class*="cookie"]`,
	`div[id*="cookie"]`,
	`div[class*="modal"]:has(button)`,
	`div[class*="popup"]:has(button)`,
	`div[class*="banner"]:has(button)`,
	`div[id*="banner"]:has(button)`,
}

// ConsentPhrases match accept buttons by their lowercase text.
var ConsentPhrases = []string{
	"accept all", "agree", "consent",
	"alle akzeptieren", "ich stimme zu", "zustimmen",
	"tout accepter", "j'accepte",
	"aceptar todo", "acepto",
	"accetta tutto", "accetto",
	"aceitar tudo", "concordo",
	"alles accepteren", "akkoord",
	"zaakceptuj wszystko", "zgadzam się",
	"godkänn alla", "godkänn",
	"accepter alle", "accepter",
	"godta alle", "godta",
	"hyväksy kaikki", "hyväksy",
	"terima semua", "setuju", "saya setuju",
	"ยอมรับทั้งหมด", "ยอมรับ",
	"chấp nhận tất cả", "đồng ý",
	"tanggapin lahat", "sumang-ayon",
	"すべて同意する", "同意する",
	"모두 동의", "동의",
}

// ConsentARIALabels match accept buttons by their lowercase aria-label.
var ConsentARIALabels = []string{
	"consent", "accept", "agree",
	"cookie", "privacy", "terms",
	"persetujuan", "setuju",
	"ยอมรับ",
	"đồng ý",
	"同意",
}
