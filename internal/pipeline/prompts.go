package pipeline

// analysisSystemText is the shared system prompt for meal analysis requests.
// It is long and identical across calls, so it is sent with a cache breakpoint.
const analysisSystemText = `You are a nutrition analyst. You identify food in images and descriptions and estimate nutritional content per ingredient.

Rules:
- First classify the input as one of: "food", "nutritional_label_on_packed_product", "packaged_product_only", "no_food_no_label".
- If the classification is "no_food_no_label", return only {"image_classification": "no_food_no_label"}.
- Estimate quantities in grams or milliliters. If unsure, assume a typical serving.
- Return a single JSON object inside a fenced code block. No prose outside the block.`

const essentialPrompt = `Analyze this meal and estimate its nutritional content.

Return JSON in this shape:
{
  "image_classification": "<classification>",
  "dish_name": "<short name for the dish>",
  "confidence": <0.0-1.0>,
  "highly_processed": <true|false>,
  "ingredients": [
    {
      "name": "<ingredient name>",
      "quantity": <number>,
      "unit": "<g|ml>",
      "calories": <kcal>,
      "protein": <g>,
      "carbs": <g>,
      "fat": <g>,
      "saturated_fat": <g>,
      "fiber": <g>,
      "sugar": <g>,
      "sodium": <mg>
    }
  ]
}`

const comprehensivePrompt = `Analyze this meal and estimate its nutritional content in detail.

Return JSON in this shape:
{
  "image_classification": "<classification>",
  "dish_name": "<short name for the dish>",
  "confidence": <0.0-1.0>,
  "highly_processed": <true|false>,
  "ingredients": [
    {
      "name": "<ingredient name>",
      "quantity": <number>,
      "unit": "<g|ml>",
      "calories": <kcal>,
      "protein": <g>,
      "carbs": <g>,
      "fat": <g>,
      "saturated_fat": <g>,
      "monounsaturated_fat": <g>,
      "polyunsaturated_fat": <g>,
      "trans_fat": <g>,
      "omega_3": <g>,
      "omega_6": <g>,
      "cholesterol": <mg>,
      "fiber": <g>,
      "sugar": <g>,
      "starch": <g>,
      "sodium": <mg>,
      "potassium": <mg>,
      "calcium": <mg>,
      "iron": <mg>,
      "magnesium": <mg>,
      "zinc": <mg>,
      "phosphorus": <mg>,
      "selenium": <mcg>,
      "copper": <mg>,
      "manganese": <mg>,
      "iodine": <mcg>,
      "vitamin_a": <mcg>,
      "vitamin_c": <mg>,
      "vitamin_d": <mcg>,
      "vitamin_e": <mg>,
      "vitamin_k": <mcg>,
      "vitamin_b1": <mg>,
      "vitamin_b2": <mg>,
      "vitamin_b3": <mg>,
      "vitamin_b5": <mg>,
      "vitamin_b6": <mg>,
      "vitamin_b7": <mcg>,
      "vitamin_b9": <mcg>,
      "vitamin_b12": <mcg>,
      "caffeine": <mg>,
      "alcohol": <g>,
      "water": <g>
    }
  ]
}

Omit any nutrient you cannot estimate. Do not invent values.`

// descriptionPreamble frames a free-text meal description (typed or
// transcribed from voice) for the same analysis prompts used with images.
const descriptionPreamble = `The user described a meal they ate. Description:

%s

`

// lookupPrompt drives branded-product search. Web search is enabled on the
// request so the model can check manufacturer or database listings.
const lookupPrompt = `Look up the nutritional content of: %s

Search for the official or most reliable nutrition data for this product or dish. Prefer per-100g values when available, otherwise use the labeled serving size.

`

// evaluationPrompt summarizes a completed progress cycle.
const evaluationPrompt = `You are a supportive nutrition coach reviewing a user's last %d days of meal logging.

Days with at least one logged meal: %d of %d.

Meal history digest:
%s

Write a short evaluation (3-5 sentences): overall balance, one concrete strength, one concrete suggestion. Plain text, no JSON, no headings.`
