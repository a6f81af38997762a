package api

const issueSchema = `{
  "type": "object",
  "required": ["to", "amount_mg"],
  "properties": {
    "to": {"type": "string", "minLength": 1},
    "amount_mg": {"type": "integer", "minimum": 1},
    "memo": {"type": ["string", "null"]}
  }
}`

const transferSchema = `{
  "type": "object",
  "required": ["from", "to", "amount_mg"],
  "properties": {
    "from": {"type": "string", "minLength": 1},
    "to": {"type": "string", "minLength": 1},
    "amount_mg": {"type": "integer", "minimum": 1},
    "memo": {"type": ["string", "null"]}
  }
}`

const provisionSchema = `{
  "type": "object",
  "additionalProperties": false,
  "required": ["ids"],
  "properties": {
    "ids": {
      "type": "array",
      "minItems": 1,
      "maxItems": 1000,
      "items": {"type": "string", "minLength": 1, "maxLength": 128}
    }
  }
}`
