package models

import "time"

// GeneratedDocument is one drafted document produced from a purchased
// template.
type GeneratedDocument struct {
	ID              string            `json:"id"`
	UserID          string            `json:"user_id"`
	TemplateID      string            `json:"template_id"`
	DocumentContent string            `json:"document_content"`
	InputData       map[string]string `json:"input_data"`
	CreatedAt       time.Time         `json:"created_at"`
}

type GenerateRequest struct {
	TemplateID string            `json:"template_id" binding:"required"`
	Inputs     map[string]string `json:"inputs" binding:"required"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
