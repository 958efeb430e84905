package utils

import (
	"strings"

	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// GetTagValue returns the value of a tag with the given key
func GetTagValue(tags []ec2types.Tag, key string) string {
	for _, tag := range tags {
		if tag.Key != nil && *tag.Key == key {
			if tag.Value != nil {
				return *tag.Value
			}
			return ""
		}
	}
	return ""
}

// GetName returns the value of the Name tag
func GetName(tags []ec2types.Tag) string {
	return GetTagValue(tags, "Name")
}

// GetTagsMap converts a slice of EC2 tags to a map
func GetTagsMap(tags []ec2types.Tag) map[string]string {
	result := make(map[string]string, len(tags))
	for _, tag := range tags {
		if tag.Key != nil {
			result[*tag.Key] = SafeDeref(tag.Value)
		}
	}
	return result
}

// GetS3TagsMap converts a bucket tag set to a map
func GetS3TagsMap(tags []s3types.Tag) map[string]string {
	result := make(map[string]string, len(tags))
	for _, tag := range tags {
		if tag.Key != nil {
			result[*tag.Key] = SafeDeref(tag.Value)
		}
	}
	return result
}

// MatchExcludedTag returns the first exclusion entry matched by tags.
// Entries are "key=value", or a bare "key" that matches on presence alone.
// Keys and values compare case-insensitively after trimming.
func MatchExcludedTag(tags map[string]string, excluded []string) (string, bool) {
	if len(tags) == 0 || len(excluded) == 0 {
		return "", false
	}

	normalized := make(map[string]string, len(tags))
	for k, v := range tags {
		normalized[strings.ToLower(strings.TrimSpace(k))] = strings.ToLower(strings.TrimSpace(v))
	}

	for _, entry := range excluded {
		key, value, hasValue := strings.Cut(entry, "=")
		key = strings.ToLower(strings.TrimSpace(key))
		if key == "" {
			continue
		}

		tagValue, present := normalized[key]
		if !present {
			continue
		}
		if !hasValue || tagValue == strings.ToLower(strings.TrimSpace(value)) {
			return entry, true
		}
	}

	return "", false
}
