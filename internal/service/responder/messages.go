package responder

// Greetings are the canned openings, chosen at random.
var Greetings = []string{
	"Hello! I'm BUDDY, your social media management assistant. How can I help you today?",
	"Hi there! I'm BUDDY, ready to help with your social media strategy. What would you like to know?",
	"Welcome! I'm BUDDY, your AI social media manager. What would you like to learn about?",
}

// Farewells are the canned closings, chosen at random.
var Farewells = []string{
	"Goodbye! Feel free to ask for more help anytime.",
	"See you later! I'm here whenever you need social media advice.",
	"Take care! Don't hesitate to reach out if you need more guidance.",
}

const (
	searchSuffix  = " social media tips best practices"
	resultsHeader = "Here's what I found about %s:\n\n"
	resultEntry   = "%d. %s\n   %s\n   Source: %s\n\n"
	closingPrompt = "Would you like more specific information about any aspect of this topic?"

	fallbackPlatformAndFocus = "I'm having trouble searching for specific information about %s on %s. Could you please rephrase your question or try a different topic?"
	fallbackPlatformOnly     = "I'm having trouble searching for specific information about %s. Could you please rephrase your question or try a different platform?"
	fallbackGeneric          = "I'm having trouble finding specific information for your query. Could you please rephrase your question or try a different topic?"
)

// ContinuePrompt is asked after each answer in interactive conversations.
const ContinuePrompt = "Do you have any other questions? Or would you like to exit?"
