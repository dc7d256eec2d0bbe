package patterns

// =============================================================================
// PATTERN DEFINITIONS BY CATEGORY
// All patterns are registered here and compiled once at package init.
// Keyword vocabularies live alongside as plain slices; they are matched by
// case-insensitive substring search, not regex.
// =============================================================================

// ScamKeywords are indicator terms for the heuristic scorer, +1 score each.
// Grouped as: account-threat, urgency, payment-request, prize/lure terms.
var ScamKeywords = []string{
	"blocked", "verify", "urgent", "kyc", "upi", "account", "suspend",
	"immediately", "expire", "warning", "alert", "confirm", "update",
	"bank", "otp", "password", "pin", "limit", "freeze", "restricted",
	"action required", "verify now", "click here", "link below",
	"pay now", "transfer", "wallet", "refund", "prize", "winner",
	"lottery", "lucky", "selected", "reward", "claim", "bonus",
}

// SuspiciousKeywords is the extraction vocabulary tracked per session.
var SuspiciousKeywords = []string{
	"urgent", "verify", "blocked", "suspend", "kyc", "expire",
	"immediately", "account", "bank", "upi", "otp", "password",
	"transfer", "payment", "refund", "prize", "lottery", "winner",
	"click", "link", "confirm", "update", "action", "required",
}

// ThreatWords and UrgencyWords feed the threat+urgency combo signal, the
// strongest single heuristic indicator (+3).
var (
	ThreatWords  = []string{"blocked", "suspend", "freeze", "restricted", "expire"}
	UrgencyWords = []string{"immediately", "urgent", "now", "asap"}
)

// --- URGENCY PATTERNS (DETECTION, +2 each) ---
func (r *Registry) registerUrgencyPatterns() {
	cat := CategoryUrgency

	r.register("deadline_window", `within \d+ (hour|minute|day)`, cat, 2, "Explicit countdown window")
	r.register("immediately", `immediately`, cat, 2, "Demand for immediate action")
	r.register("right_now", `right now`, cat, 2, "Demand for immediate action")
	r.register("asap_long", `as soon as possible`, cat, 2, "ASAP phrasing")
	r.register("asap", `asap`, cat, 2, "ASAP phrasing")
	r.register("urgent", `urgent`, cat, 2, "Urgency marker")
	r.register("time_limit", `time.?limit`, cat, 2, "Time limit phrasing")
	r.register("expire", `expire`, cat, 2, "Expiry threat")
	r.register("deadline", `deadline`, cat, 2, "Deadline phrasing")
}

// --- EXTRACTION PATTERNS (INTELLIGENCE) ---
func (r *Registry) registerExtractionPatterns() {
	// token@provider; provider length validated downstream (<= 10 chars,
	// which excludes email-like domains such as gmail.com).
	r.register("upi_id", `[a-zA-Z0-9.\-_]{2,}@[a-zA-Z]{2,}`, CategoryUPI, 0, "UPI payment handle")

	// 10 digits starting 6-9, optional +91 country code, or any bare 10-digit
	// run; normalization and final validation happen in the extractor.
	r.register("indian_phone", `(?:\+91[\s-]?)?[6-9]\d{9}|\b\d{10}\b`, CategoryPhone, 0, "Indian mobile number")

	// 9-18 digit runs; the extractor drops runs that look like phone numbers.
	r.register("bank_account", `\b\d{9,18}\b`, CategoryBankAccount, 0, "Bank account number")

	// Case-insensitive: scammers uppercase links to dodge naive filters.
	r.register("url", `(?i)https?://[^\s<>"']+|www\.[^\s<>"']+`, CategoryURL, 0, "HTTP or www link")
}
