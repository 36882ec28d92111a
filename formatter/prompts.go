package formatter

// Delivery modes understood by the formatter. Unknown modes get the email
// treatment.
const (
	ModeEmail   = "email"
	ModeMessage = "message"
)

const systemPrompt = `You rewrite dictated speech into clean written text.

Rules:
- Do not add information that is not in the dictation.
- Preserve names, dates, numbers and URLs exactly as spoken.
- If a passage is unclear, keep the original wording.
- Remove filler words and false starts.
- Return only the rewritten text, with no markdown, quotes or commentary.`

const emailInstruction = `Rewrite the following dictation as professional email prose: full sentences, clean paragraphs, no greeting or signature unless dictated.`

const messageInstruction = `Rewrite the following dictation as a casual chat message: short, conversational, keep it close to the spoken phrasing.`

func userPrompt(mode, raw string) string {
	instruction := emailInstruction
	if mode == ModeMessage {
		instruction = messageInstruction
	}
	return instruction + "\n\n" + raw
}
