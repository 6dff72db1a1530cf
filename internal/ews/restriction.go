package ews

import "strconv"

// Field URIs used in restrictions and sort orders.
const (
	fieldSubject          = "item:Subject"
	fieldHasAttachments   = "item:HasAttachments"
	fieldDateTimeReceived = "item:DateTimeReceived"
	fieldIsRead           = "message:IsRead"
)

// restriction is the m:Restriction element. All set filters are
// combined under a single t:And.
type restriction struct {
	And searchAnd `xml:"t:And"`
}

type searchAnd struct {
	Contains  []contains  `xml:"t:Contains"`
	IsEqualTo []isEqualTo `xml:"t:IsEqualTo"`
}

type contains struct {
	ContainmentMode       string      `xml:"ContainmentMode,attr"`
	ContainmentComparison string      `xml:"ContainmentComparison,attr"`
	FieldURI              xmlFieldURI `xml:"t:FieldURI"`
	Constant              constant    `xml:"t:Constant"`
}

type isEqualTo struct {
	FieldURI xmlFieldURI `xml:"t:FieldURI"`
	Constant constant    `xml:"t:FieldURIOrConstant>t:Constant"`
}

type constant struct {
	Value string `xml:"Value,attr"`
}

// buildRestriction returns nil when q sets no filter.
func buildRestriction(q FindQuery) *restriction {
	var and searchAnd

	if q.SubjectContains != "" {
		and.Contains = append(and.Contains, contains{
			ContainmentMode:       "Substring",
			ContainmentComparison: "IgnoreCase",
			FieldURI:              xmlFieldURI{FieldURI: fieldSubject},
			Constant:              constant{Value: q.SubjectContains},
		})
	}

	if q.HasAttachments != nil {
		and.IsEqualTo = append(and.IsEqualTo, equalBool(fieldHasAttachments, *q.HasAttachments))
	}

	if q.IsRead != nil {
		and.IsEqualTo = append(and.IsEqualTo, equalBool(fieldIsRead, *q.IsRead))
	}

	if len(and.Contains) == 0 && len(and.IsEqualTo) == 0 {
		return nil
	}
	return &restriction{And: and}
}

func equalBool(field string, v bool) isEqualTo {
	return isEqualTo{
		FieldURI: xmlFieldURI{FieldURI: field},
		Constant: constant{Value: strconv.FormatBool(v)},
	}
}
