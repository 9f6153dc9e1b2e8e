package render

// User-facing literals.
const (
	LabelTips            = "Quick tips"
	LabelGuides          = "Magazine guides"
	LabelArticles        = "Barcelona Metropolitan articles"
	LabelReadGuide       = "Read the full guide"
	LabelReadArticle     = "Read article"
	LabelNoTitle         = "No title"
	LabelNoDescription   = "No description"
	LabelAdvertiser      = "Advertiser"
	LabelContact         = "Contact"
	LabelPrice           = "Price"
	LabelLocation        = "Location"
	LabelViewListing     = "View listing in the directory"
	LabelBenefits        = "Benefits"
	LabelFAQ             = "Frequently asked questions"
	LabelShowMore        = "Show more results"
	LabelPlans           = "Advertising plans"
	LabelTestimonials    = "What our advertisers say"
	LabelDuration        = "Duration"
	MessageFallback      = "I couldn't find information about that, can you be more specific?"
	MessageConnection    = "Sorry, a connection error occurred. Make sure the server is running and try again."
	MessageLoadMoreError = "I couldn't load more results."
)
