package narrator

import "fmt"

const systemPrompt = `Role: You're a data-savvy assistant.
Task: Your job is to briefly discuss the data trends up to 280 characters.
Tone: technical (avoid jargon).`

func userPrompt(data string) string {
	return fmt.Sprintf("Generate a brief trend report for the following data.\nData: %s.", data)
}
