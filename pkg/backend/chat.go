package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
)

const (
	chatPath   = "/chat"
	uploadPath = "/appointments/upload_prescription"
)

// ChatRequest is the body of one conversation turn.
type ChatRequest struct {
	Sender  string `json:"sender"`
	Message string `json:"message"`
}

// ChatClient talks to the conversation backend.
type ChatClient struct {
	*client
}

func NewChatClient(cfg Config) (*ChatClient, error) {
	c, err := newClient(cfg)
	if err != nil {
		return nil, err
	}
	return &ChatClient{client: c}, nil
}

// Send posts one turn and returns the raw envelope list in backend order.
// Envelope interpretation belongs to the caller.
func (c *ChatClient) Send(ctx context.Context, sender, message string) ([]json.RawMessage, error) {
	var envelopes []json.RawMessage
	if err := c.doJSON(ctx, http.MethodPost, chatPath, ChatRequest{Sender: sender, Message: message}, &envelopes); err != nil {
		return nil, err
	}
	return envelopes, nil
}

// UploadPrescription sends a file as multipart form fields "file" and
// "patient_id".
func (c *ChatClient) UploadPrescription(ctx context.Context, patientID, filename string, r io.Reader) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return fmt.Errorf("creating file part: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return fmt.Errorf("reading upload %s: %w", filename, err)
	}
	if err := mw.WriteField("patient_id", patientID); err != nil {
		return fmt.Errorf("writing patient_id field: %w", err)
	}
	if err := mw.Close(); err != nil {
		return err
	}

	return c.do(ctx, http.MethodPost, uploadPath, mw.FormDataContentType(), &buf, nil)
}
