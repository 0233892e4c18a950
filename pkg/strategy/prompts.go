package strategy

import "strings"

const tweetPlaceholder = "{tweet}"

const zeroShotTemplate = `What airline is mentioned in this tweet? Only respond with the official airline name, not an abbreviation or variation on the name. If there is no airline name, return "No airline found".

Tweet: '{tweet}'`

const oneShotTemplate = `Extract the official airline name from the tweet. If there is no airline name, return "No airline found". Use the example format below:

Tweet: '@AmericanAir your service is terrible!'
Airlines: American Airlines

Tweet: '{tweet}'
Airlines:`

const fewShotTemplate = `Extract the official airline names from the tweet. If there is no airline name, return "No airline found". Use the examples format below:

Tweet: '@AmericanAir your service is terrible!'
Airlines: American Airlines

Tweet: '@United to LAX then @SouthwestAir to Vegas'
Airlines: United Airlines, Southwest Airlines

Tweet: '@USAirways and @JetBlue both lost my bags today'
Airlines: US Airways, JetBlue Airways

Tweet: '@VirginAmerica best airline ever'
Airlines: Virgin America

Tweet: '{tweet}'
Airlines:`

// Templates holds the prompt for each prompt-based strategy.
var Templates = map[Name]string{
	ZeroShot: zeroShotTemplate,
	OneShot:  oneShotTemplate,
	FewShot:  fewShotTemplate,
}

// Render substitutes text into template.
func Render(template, text string) string {
	return strings.ReplaceAll(template, tweetPlaceholder, text)
}

const candidateSystemPrompt = "Extract potential airline names from the tweet, one per line."

func candidatePrompt(known []string, text string) string {
	var b strings.Builder
	b.WriteString("Extract airline names from this tweet. Common airlines include: ")
	b.WriteString(strings.Join(known, ", "))
	b.WriteString("\n\nTweet: '")
	b.WriteString(text)
	b.WriteString("'\nAirlines (one per line):")
	return b.String()
}
