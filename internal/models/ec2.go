package models

import "time"

// ResourceDescriptor is a read-only snapshot of one compute instance
type ResourceDescriptor struct {
	InstanceID       string            `json:"instance_id"`
	Name             string            `json:"name,omitempty"`
	InstanceType     string            `json:"instance_type"`
	Region           string            `json:"region"`
	AvailabilityZone string            `json:"availability_zone,omitempty"`
	Tags             map[string]string `json:"tags,omitempty"`
	State            string            `json:"state,omitempty"`
	OperatingSystem  string            `json:"operating_system,omitempty"`
	LaunchTime       *time.Time        `json:"launch_time,omitempty"`

	// Utilization samples in percent. A nil AverageCPU means the metrics
	// collaborator returned nothing for this instance.
	CurrentCPU *float64 `json:"current_cpu,omitempty"`
	AverageCPU *float64 `json:"average_cpu_7d,omitempty"`

	UptimeHours *float64 `json:"uptime_hours,omitempty"`

	// ObservedMonthlyCost is the billed monthly amount when a billing
	// collaborator knows it. Price resolution is still used for ratios.
	ObservedMonthlyCost *float64 `json:"monthly_cost,omitempty"`
}

// Validate reports the first missing required field as a DataShapeError
func (r ResourceDescriptor) Validate() error {
	switch {
	case r.InstanceType == "":
		return &DataShapeError{Kind: "instance", ID: r.InstanceID, Field: "instance_type"}
	case r.AverageCPU == nil:
		return &DataShapeError{Kind: "instance", ID: r.InstanceID, Field: "average_cpu_7d"}
	case r.UptimeHours == nil:
		return &DataShapeError{Kind: "instance", ID: r.InstanceID, Field: "uptime_hours"}
	}
	return nil
}
