package riddle

import "fmt"

// SystemPrompt sets the poet persona and the riddle rules.
const SystemPrompt = `You are a playful holiday poet who writes clever riddles.
Your riddles should be:
- Exactly 4 lines
- Rhyming (AABB or ABAB pattern)
- Festive and fun in tone
- Subtle hints without revealing the gift directly

IMPORTANT: Never mention the actual gift name in the riddle. Use clever hints and metaphors instead.`

// Prompt builds the user turn for one recipient and gift.
func Prompt(recipient, giftIdea string) string {
	return fmt.Sprintf(`Write a 4-line rhyming riddle for %s about their holiday gift.

The gift is: %s

Remember:
- Do NOT mention %q or any direct synonym
- Use playful hints and metaphors
- Make it festive and warm
- The recipient should be able to guess but not immediately know

Write ONLY the 4-line riddle, nothing else.`, recipient, giftIdea, giftIdea)
}
