package utils

import (
	"net/url"
	"os"
	"strings"
)

// Object keys and public URLs convert in both directions: the API stores
// full access URLs on image rows (the mobile client renders them directly)
// but bucket operations need the bare key back.

// BuildObjectAccessURL renders the public URL for objectKey.
// STORAGE_ACCESS_BASE_URL wins when set (optionally with an {objectKey}
// placeholder or a trailing query parameter); otherwise the canonical
// GCS_URL/GCS_BUCKET form; otherwise the key itself.
func BuildObjectAccessURL(objectKey string) string {
	if base := strings.TrimSpace(os.Getenv("STORAGE_ACCESS_BASE_URL")); base != "" {
		switch {
		case strings.Contains(base, "{objectKey}"):
			escaped := objectKey
			if strings.Contains(base, "?") {
				escaped = url.QueryEscape(objectKey)
			}
			return strings.ReplaceAll(base, "{objectKey}", escaped)
		case strings.Contains(base, "?"):
			return base + url.QueryEscape(objectKey)
		default:
			return strings.TrimRight(base, "/") + "/" + objectKey
		}
	}

	gcsHost := strings.TrimSpace(os.Getenv("GCS_URL"))
	bucket := strings.TrimSpace(os.Getenv("GCS_BUCKET"))
	if gcsHost != "" && bucket != "" {
		return "https://" + gcsHost + "/" + bucket + "/" + objectKey
	}
	return objectKey
}

// ExtractObjectKeyFromURL inverts BuildObjectAccessURL for every form it can
// emit, plus gs:// URIs and the well-known GCS hosts. Returns "" when the URL
// does not map to an object in our bucket.
func ExtractObjectKeyFromURL(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return ""
	}

	// A bare object key (e.g. "vendorId/products/photo.png") passes through
	// unchanged so delete flows keep working when no access-URL envs are set.
	if !strings.Contains(rawURL, "://") && !strings.HasPrefix(rawURL, "/") && strings.Contains(rawURL, "/") {
		if strings.Contains(rawURL, "..") {
			return ""
		}
		return rawURL
	}

	if after, ok := strings.CutPrefix(rawURL, "gs://"); ok {
		if _, key, found := strings.Cut(after, "/"); found {
			return key
		}
		return ""
	}

	if key := extractFromParsedURL(rawURL); key != "" {
		return key
	}
	if key := extractFromConfiguredHosts(rawURL); key != "" {
		return key
	}
	return ""
}

func extractFromParsedURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	if key := parsed.Query().Get("key"); key != "" {
		return key
	}
	if key := parsed.Query().Get("objectKey"); key != "" {
		return key
	}

	host := strings.ToLower(strings.TrimSpace(parsed.Host))
	path := strings.TrimPrefix(parsed.Path, "/")
	// https://storage.googleapis.com/<bucket>/<key> and the console host
	if host == "storage.googleapis.com" || host == "storage.cloud.google.com" {
		if _, key, found := strings.Cut(path, "/"); found && key != "" {
			return key
		}
		return ""
	}
	// https://<bucket>.storage.googleapis.com/<key>
	if strings.HasSuffix(host, ".storage.googleapis.com") {
		return path
	}
	return ""
}

func extractFromConfiguredHosts(rawURL string) string {
	gcsHost := strings.TrimSpace(os.Getenv("GCS_URL"))
	bucket := strings.TrimSpace(os.Getenv("GCS_BUCKET"))
	if gcsHost != "" && bucket != "" {
		for _, scheme := range []string{"https://", "http://"} {
			if key, ok := strings.CutPrefix(rawURL, scheme+gcsHost+"/"+bucket+"/"); ok {
				return key
			}
		}
	}

	base := strings.TrimSpace(os.Getenv("STORAGE_ACCESS_BASE_URL"))
	if base == "" {
		return ""
	}
	if strings.Contains(base, "{objectKey}") {
		prefix, suffix, found := strings.Cut(base, "{objectKey}")
		if found && strings.HasPrefix(rawURL, prefix) && strings.HasSuffix(rawURL, suffix) {
			trimmed := strings.TrimSuffix(strings.TrimPrefix(rawURL, prefix), suffix)
			if decoded, err := url.QueryUnescape(trimmed); err == nil {
				return decoded
			}
			return trimmed
		}
		return ""
	}
	if strings.Contains(base, "?") && strings.HasPrefix(rawURL, base) {
		trimmed := strings.TrimPrefix(rawURL, base)
		if decoded, err := url.QueryUnescape(trimmed); err == nil {
			return decoded
		}
		return trimmed
	}
	return ""
}
