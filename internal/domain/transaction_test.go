package domain

import "testing"

func TestAssessment_Flagged(t *testing.T) {
	yes, no := true, false

	tests := []struct {
		name       string
		assessment Assessment
		want       bool
	}{
		{name: "nothing", assessment: Assessment{}, want: false},
		{name: "velocity only", assessment: Assessment{VelocityFlag: true}, want: true},
		{name: "model anomaly", assessment: Assessment{Anomaly: &yes}, want: true},
		{name: "model says no", assessment: Assessment{Anomaly: &no}, want: false},
		{name: "model says no but velocity fired", assessment: Assessment{Anomaly: &no, VelocityFlag: true}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.assessment.Flagged(); got != tt.want {
				t.Errorf("Flagged() = %v, want %v", got, tt.want)
			}
		})
	}
}
