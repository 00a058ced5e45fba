package intent

import "strings"

// Platform 表示用户询问的社交平台。
type Platform string

const (
	NoPlatform Platform = ""
	Instagram  Platform = "instagram"
	YouTube    Platform = "youtube"
	Facebook   Platform = "facebook"
)

// FocusArea 表示用户关注的运营方向。
type FocusArea string

const (
	NoFocusArea FocusArea = ""
	Content     FocusArea = "content"
	Marketing   FocusArea = "marketing"
	Engagement  FocusArea = "engagement"
)

// Result 是单次输入的分类结果，不做持久化。
type Result struct {
	IsGreeting bool
	IsFarewell bool
	Platform   Platform
	FocusArea  FocusArea
}

type platformGroup struct {
	tag      Platform
	keywords []string
}

type focusGroup struct {
	tag      FocusArea
	keywords []string
}

var greetingKeywords = []string{"hi", "hello", "hey", "good morning", "good afternoon", "good evening"}

var farewellKeywords = []string{"bye", "goodbye", "see you", "thanks", "thank you"}

// Declaration order is the tie-break: the first group with a hit wins.
var platformGroups = []platformGroup{
	{tag: Instagram, keywords: []string{"instagram", "ig", "insta"}},
	{tag: YouTube, keywords: []string{"youtube", "yt", "video"}},
	{tag: Facebook, keywords: []string{"facebook", "fb", "meta"}},
}

var focusGroups = []focusGroup{
	{tag: Content, keywords: []string{"content", "post", "create", "make", "design", "photo", "video"}},
	{tag: Marketing, keywords: []string{"marketing", "promote", "ad", "advertise", "reach", "audience", "followers"}},
	{tag: Engagement, keywords: []string{"engagement", "interact", "comment", "respond", "community", "fans"}},
}

// Classify 对输入做大小写归一后执行全部关键词检测。
func Classify(input string) Result {
	normalized := strings.ToLower(input)
	return Result{
		IsGreeting: containsAny(normalized, greetingKeywords),
		IsFarewell: containsAny(normalized, farewellKeywords),
		Platform:   detectPlatform(normalized),
		FocusArea:  detectFocusArea(normalized),
	}
}

// DetectPlatform returns the first platform whose keywords occur in input.
func DetectPlatform(input string) Platform {
	return detectPlatform(strings.ToLower(input))
}

// DetectFocusArea returns the first focus area whose keywords occur in input.
func DetectFocusArea(input string) FocusArea {
	return detectFocusArea(strings.ToLower(input))
}

func detectPlatform(normalized string) Platform {
	for _, group := range platformGroups {
		if containsAny(normalized, group.keywords) {
			return group.tag
		}
	}
	return NoPlatform
}

func detectFocusArea(normalized string) FocusArea {
	for _, group := range focusGroups {
		if containsAny(normalized, group.keywords) {
			return group.tag
		}
	}
	return NoFocusArea
}

func containsAny(text string, keywords []string) bool {
	if text == "" {
		return false
	}
	for _, word := range keywords {
		if strings.Contains(text, word) {
			return true
		}
	}
	return false
}

// Platforms 按检测优先级列出支持的平台。
func Platforms() []Platform {
	out := make([]Platform, 0, len(platformGroups))
	for _, g := range platformGroups {
		out = append(out, g.tag)
	}
	return out
}

// FocusAreas 按检测优先级列出支持的关注方向。
func FocusAreas() []FocusArea {
	out := make([]FocusArea, 0, len(focusGroups))
	for _, g := range focusGroups {
		out = append(out, g.tag)
	}
	return out
}
