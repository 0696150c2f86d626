package executor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/url"
	"sort"
	"strings"

	"auto-api-healer/internal/types"
)

// sampleFileContent is uploaded for file fields that carry no usable content
const sampleFileContent = "auto-api-healer sample upload\n"

// encodeBody serializes a bound body in the encoding the endpoint declares.
// It returns the payload and its Content-Type.
func encodeBody(ep types.Endpoint, body interface{}) (io.Reader, string, error) {
	contentType := strings.ToLower(ep.RequestBodyContentType)
	switch {
	case strings.HasPrefix(contentType, "multipart/"):
		return encodeMultipart(ep, body)
	case strings.HasPrefix(contentType, "application/x-www-form-urlencoded"):
		fields := asFields(body)
		values := url.Values{}
		for _, key := range sortedKeys(fields) {
			addFormValue(values, key, fields[key])
		}
		return strings.NewReader(values.Encode()), "application/x-www-form-urlencoded", nil
	default:
		data, err := json.Marshal(body)
		if err != nil {
			return nil, "", fmt.Errorf("failed to marshal request body: %w", err)
		}
		return bytes.NewReader(data), "application/json", nil
	}
}

// encodeMultipart writes one part per body field. Fields whose schema is
// binary become file parts; declared file fields missing from the body get
// sample content.
func encodeMultipart(ep types.Endpoint, body interface{}) (io.Reader, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	fields := map[string]interface{}{}
	for key, value := range asFields(body) {
		fields[key] = value
	}
	if ep.RequestBody != nil && ep.RequestBody.Value != nil {
		for name := range ep.RequestBody.Value.Properties {
			if _, ok := fields[name]; !ok && ep.IsFileField(name) {
				fields[name] = nil
			}
		}
	}

	for _, key := range sortedKeys(fields) {
		value := fields[key]
		if ep.IsFileField(key) {
			part, err := writer.CreateFormFile(key, key+".txt")
			if err != nil {
				return nil, "", fmt.Errorf("failed to create file part %s: %w", key, err)
			}
			content := sampleFileContent
			if s, ok := value.(string); ok && s != "" {
				content = s
			}
			if _, err := io.WriteString(part, content); err != nil {
				return nil, "", fmt.Errorf("failed to write file part %s: %w", key, err)
			}
			continue
		}

		values := url.Values{}
		addFormValue(values, key, value)
		for _, v := range values[key] {
			if err := writer.WriteField(key, v); err != nil {
				return nil, "", fmt.Errorf("failed to write field %s: %w", key, err)
			}
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart body: %w", err)
	}
	return &buf, writer.FormDataContentType(), nil
}

// addFormValue flattens arrays into repeated values and nested objects into JSON text
func addFormValue(values url.Values, key string, value interface{}) {
	switch v := value.(type) {
	case nil:
	case []interface{}:
		for _, item := range v {
			values.Add(key, types.FormatValue(item))
		}
	case map[string]interface{}:
		data, err := json.Marshal(v)
		if err == nil {
			values.Add(key, string(data))
		}
	default:
		values.Add(key, types.FormatValue(v))
	}
}

func asFields(body interface{}) map[string]interface{} {
	fields, _ := body.(map[string]interface{})
	return fields
}

func sortedKeys(fields map[string]interface{}) []string {
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
