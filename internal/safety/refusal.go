package safety

import "github.com/HanTheDev/tutor-gateway/internal/models"

// RefusalMessage is the canned reply sent instead of a model answer.
func RefusalMessage(reason Reason, sc *models.StudentContext) string {
	switch reason {
	case ReasonUnsafeKeyword:
		return "I can't help with that topic. If something is worrying you, please talk with a parent, teacher, or another trusted adult. When you're ready, tell me what you're studying and we'll work on it together."
	case ReasonPersonalContact:
		return "I can't help find or share personal details like addresses, phone numbers, or locations. Let's keep personal information private. Is there a lesson or question I can help you with instead?"
	case ReasonAgeInappropriate:
		if sc != nil && sc.Grade != nil && *sc.Grade <= 5 {
			return "That's a good question to ask a parent or a grown-up you trust. I'm here to help with schoolwork. Want to try a math or reading question together?"
		}
		return "That topic is best talked about with a parent, guardian, or school counselor. I'm here to help with your classes, so let me know what you're working on."
	case ReasonPromptAttack:
		return "I need to stick to my tutoring guidelines, so I can't change how I work. Ask me about a lesson and I'll help you think it through step by step."
	default:
		return "I can't help with that request. Let's get back to your lessons."
	}
}
