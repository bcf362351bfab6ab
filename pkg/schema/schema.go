package schema

import (
	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go/v3"
)

func generateSchema[T any]() any {
	r := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	return r.Reflect(v)
}

var DreamAnalysisSchema = generateSchema[Analysis]()

// StructuredOutputsResponseFormat asks for output matching DreamAnalysisSchema.
// Strict mode is off because personality_traits is optional.
func StructuredOutputsResponseFormat() openai.ChatCompletionNewParamsResponseFormatUnion {
	p := openai.ResponseFormatJSONSchemaJSONSchemaParam{
		Name:        "dream_analysis",
		Description: openai.String("Psychological analysis of a dream with symbols, insight and trait scores"),
		Schema:      DreamAnalysisSchema,
		Strict:      openai.Bool(false),
	}
	return openai.ChatCompletionNewParamsResponseFormatUnion{
		OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{JSONSchema: p},
	}
}

// JSONObjectResponseFormat is the fallback for providers that only know
// json_object mode.
func JSONObjectResponseFormat() openai.ChatCompletionNewParamsResponseFormatUnion {
	return openai.ChatCompletionNewParamsResponseFormatUnion{
		OfJSONObject: &openai.ResponseFormatJSONObjectParam{},
	}
}
