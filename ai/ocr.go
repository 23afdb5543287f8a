package ai

import (
	"context"
	"encoding/base64"

	"github.com/sharmavijay45/Infiverse-BHL-sub000/httpclient"
)

// OCRClient extracts text from evidence images via an external OCR service.
type OCRClient struct {
	client *httpclient.Client
}

func NewOCRClient(url string, timeoutSeconds int) *OCRClient {
	return &OCRClient{
		client: httpclient.NewClient(httpclient.Config{
			BaseURL:        url,
			TimeoutSeconds: timeoutSeconds,
		}),
	}
}

// ExtractText runs OCR over a JPEG image and returns the recognized text
// with the service's confidence estimate.
func (o *OCRClient) ExtractText(ctx context.Context, image []byte) (string, float64, error) {
	payload := map[string]string{
		"image": base64.StdEncoding.EncodeToString(image),
	}

	var resp struct {
		Text       string  `json:"text"`
		Confidence float64 `json:"confidence"`
	}
	if err := o.client.PostJSONDecode(ctx, "/ocr", payload, &resp); err != nil {
		return "", 0, err
	}

	return resp.Text, resp.Confidence, nil
}
