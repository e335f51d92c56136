package positioning

import (
	"fmt"

	"github.com/target/brandpulse/internal/domain/model"
)

const analysisSystem = "You analyze brand positioning in text. " +
	"Return ONLY a raw JSON object with NO explanations, markdown formatting, backticks, or code blocks."

const analysisTemplate = `Analyze the following text for brand positioning:

"%s"

Focus specifically on brand "%s" and other brands mentioned.

The raw JSON structure must be:
{
    "positioning": {
        "brandName1": positioningScore,
        "brandName2": positioningScore
    },
    "repetition": numberOfTimesMainBrandIsRepeated,
    "density": {
        "brandName1": densityPercentage,
        "brandName2": densityPercentage
    }
}

Where:
- positioningScore is a number from 1-5 (1=positive, 5=negative)
- repetition counts how many times "%s" appears
- density shows what percentage of brand mentions each brand represents and sum should be 100%%

ONLY return the JSON with NO other text or formatting.`

// AnalysisPrompt builds the instruction asking a model to score brand positioning in answer.
func AnalysisPrompt(answer, brandName string) model.Prompt {
	return model.Prompt{
		System: analysisSystem,
		User:   fmt.Sprintf(analysisTemplate, answer, brandName, brandName),
	}
}
