package pricing

import (
	"strings"
)

// defaultFallbackRegion is used when a region has no fallback table
const defaultFallbackRegion = "us-east-1"

// Default on-demand Linux hourly prices in USD.
// These are fallback prices if Pricing API fails.
var DefaultEC2Prices = map[string]map[string]float64{
	"us-east-1": { // US East (N. Virginia)
		"t2.micro":   0.0116,
		"t2.small":   0.023,
		"t2.medium":  0.0464,
		"t2.large":   0.0928,
		"t3.nano":    0.0052,
		"t3.micro":   0.0104,
		"t3.small":   0.0208,
		"t3.medium":  0.0416,
		"t3.large":   0.0832,
		"t3.xlarge":  0.1664,
		"t3.2xlarge": 0.3328,
		"m5.large":   0.096,
		"m5.xlarge":  0.192,
		"m5.2xlarge": 0.384,
		"m5.4xlarge": 0.768,
		"c5.large":   0.085,
		"c5.xlarge":  0.17,
		"c5.2xlarge": 0.34,
		"r5.large":   0.126,
		"r5.xlarge":  0.252,
		"r5.2xlarge": 0.504,
	},
	"ap-northeast-2": { // Asia Pacific (Seoul)
		"t3.nano":    0.0065,
		"t3.micro":   0.013,
		"t3.small":   0.026,
		"t3.medium":  0.052,
		"t3.large":   0.104,
		"t3.xlarge":  0.208,
		"t3.2xlarge": 0.416,
		"m5.large":   0.118,
		"m5.xlarge":  0.236,
		"m5.2xlarge": 0.472,
		"c5.large":   0.096,
		"c5.xlarge":  0.192,
		"r5.large":   0.152,
		"r5.xlarge":  0.304,
	},
}

// Default S3 storage prices in USD per GB-month
var DefaultS3Prices = map[string]map[string]float64{
	"us-east-1": {
		"STANDARD":            0.023,
		"INTELLIGENT_TIERING": 0.023,
		"STANDARD_IA":         0.0125,
		"ONEZONE_IA":          0.01,
		"GLACIER_IR":          0.004,
		"GLACIER":             0.0036,
		"DEEP_ARCHIVE":        0.00099,
	},
	"ap-northeast-2": {
		"STANDARD":            0.025,
		"INTELLIGENT_TIERING": 0.025,
		"STANDARD_IA":         0.0138,
		"ONEZONE_IA":          0.011,
		"GLACIER_IR":          0.005,
		"GLACIER":             0.005,
		"DEEP_ARCHIVE":        0.002,
	},
}

// s3VolumeTypes maps storage classes to the AmazonS3 volumeType attribute
var s3VolumeTypes = map[string]string{
	"STANDARD":            "Standard",
	"INTELLIGENT_TIERING": "Intelligent-Tiering Frequent Access",
	"STANDARD_IA":         "Standard - Infrequent Access",
	"ONEZONE_IA":          "One Zone - Infrequent Access",
	"GLACIER_IR":          "Glacier Instant Retrieval",
	"GLACIER":             "Amazon Glacier",
	"DEEP_ARCHIVE":        "Glacier Deep Archive",
}

// Reserved discounts applied to on-demand when no reserved price is published
const (
	reserved1YrDiscount = 0.5
	reserved3YrDiscount = 0.6
)

// familyBasePrices are hourly prices at the medium size
var familyBasePrices = map[string]float64{
	"t2":  0.0464,
	"t3":  0.0416,
	"t3a": 0.0376,
	"t4g": 0.0336,
	"m5":  0.048,
	"m5a": 0.043,
	"m6i": 0.048,
	"m6g": 0.0385,
	"m7i": 0.0504,
	"m7g": 0.0408,
	"c5":  0.0425,
	"c6i": 0.0425,
	"c6g": 0.034,
	"c7g": 0.0363,
	"r5":  0.063,
	"r6i": 0.063,
	"r6g": 0.0504,
	"r7g": 0.0536,
	"i3":  0.078,
	"x1":  0.417,
	"p3":  0.765,
}

// classBasePrices are hourly prices at the medium size by instance class letter
var classBasePrices = map[byte]float64{
	't': 0.0416,
	'm': 0.048,
	'c': 0.0425,
	'r': 0.063,
	'i': 0.078,
	'd': 0.0865,
	'x': 0.417,
	'z': 0.093,
	'g': 0.263,
	'p': 0.765,
}

// genericBasePrice is the medium-size price used when nothing else matches
const genericBasePrice = 0.05

// sizeMultipliers scale a medium-size price to another size
var sizeMultipliers = map[string]float64{
	"nano":     0.125,
	"micro":    0.25,
	"small":    0.5,
	"medium":   1,
	"large":    2,
	"xlarge":   4,
	"2xlarge":  8,
	"3xlarge":  12,
	"4xlarge":  16,
	"6xlarge":  24,
	"8xlarge":  32,
	"9xlarge":  36,
	"12xlarge": 48,
	"16xlarge": 64,
	"18xlarge": 72,
	"24xlarge": 96,
	"32xlarge": 128,
	"48xlarge": 192,
	"metal":    96,
}

// fallbackEC2Price looks the instance up in the static table
func fallbackEC2Price(instanceType, region string) (float64, bool) {
	if price, ok := DefaultEC2Prices[region][instanceType]; ok {
		return price, true
	}
	price, found := DefaultEC2Prices[defaultFallbackRegion][instanceType]
	return price, found
}

// fallbackS3Price looks the storage class up in the static table
func fallbackS3Price(region, storageClass string) (float64, bool) {
	prices, ok := DefaultS3Prices[region]
	if !ok {
		prices = DefaultS3Prices[defaultFallbackRegion]
	}
	price, found := prices[storageClass]
	return price, found
}

// SplitInstanceType splits "m5.2xlarge" into family "m5" and size "2xlarge"
func SplitInstanceType(instanceType string) (family, size string) {
	family, size, found := strings.Cut(strings.ToLower(instanceType), ".")
	if !found {
		return family, ""
	}
	return family, size
}

// DeriveHourlyPrice estimates an hourly price from family and size. Never zero.
func DeriveHourlyPrice(instanceType string) float64 {
	family, size := SplitInstanceType(instanceType)

	base, ok := familyBasePrices[family]
	if !ok && family != "" {
		base, ok = classBasePrices[family[0]]
	}
	if !ok {
		base = genericBasePrice
	}

	multiplier, ok := sizeMultipliers[size]
	if !ok {
		multiplier = 1
	}

	return base * multiplier
}

// reservedDiscount returns the fraction taken off on-demand for a tier
func reservedDiscount(years int) float64 {
	if years == 3 {
		return reserved3YrDiscount
	}
	return reserved1YrDiscount
}
