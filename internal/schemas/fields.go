package schemas

// Canonical report fields, in document order
const (
	FieldPatientName      = "patient_name"
	FieldExaminationDate  = "examination_date"
	FieldSex              = "sex"
	FieldAge              = "age"
	FieldRefBy            = "refby"
	FieldUHIDNo           = "uhidno"
	FieldExaminationType  = "examination_type"
	FieldExaminedArea     = "examined_area"
	FieldDeviceModel      = "device_model"
	FieldImagingFindings  = "imaging_findings"
	FieldDiagnosisSummary = "diagnosis_summary"
	FieldComment          = "comment"
)

// ReservedRawResponseKey holds the unparsed completion when no mapping was recovered
const ReservedRawResponseKey = "raw_response"

// DefaultPlaceholder is rendered for canonical fields without an extracted value.
// It is also the sentinel the extraction prompt asks the model to emit.
const DefaultPlaceholder = "UNKNOWN"

var canonicalFields = []string{
	FieldPatientName,
	FieldExaminationDate,
	FieldSex,
	FieldAge,
	FieldRefBy,
	FieldUHIDNo,
	FieldExaminationType,
	FieldExaminedArea,
	FieldDeviceModel,
	FieldImagingFindings,
	FieldDiagnosisSummary,
	FieldComment,
}

var canonicalSet = func() map[string]struct{} {
	set := make(map[string]struct{}, len(canonicalFields))
	for _, f := range canonicalFields {
		set[f] = struct{}{}
	}
	return set
}()

// fieldLabels are the headings used in rendered documents
var fieldLabels = map[string]string{
	FieldPatientName:      "Patient Name",
	FieldExaminationDate:  "Examination Date",
	FieldSex:              "Sex",
	FieldAge:              "Age",
	FieldRefBy:            "Referred By",
	FieldUHIDNo:           "UHID No.",
	FieldExaminationType:  "Examination Type",
	FieldExaminedArea:     "Examined Area",
	FieldDeviceModel:      "Device Model",
	FieldImagingFindings:  "Imaging Findings",
	FieldDiagnosisSummary: "Diagnosis Summary",
	FieldComment:          "Comment",
}

// CanonicalFields returns a copy of the twelve canonical field names
func CanonicalFields() []string {
	out := make([]string, len(canonicalFields))
	copy(out, canonicalFields)
	return out
}

// IsCanonical reports whether key is one of the canonical fields
func IsCanonical(key string) bool {
	_, ok := canonicalSet[key]
	return ok
}

// Label returns the document heading for a field; unknown keys are returned as-is
func Label(key string) string {
	if label, ok := fieldLabels[key]; ok {
		return label
	}
	return key
}
