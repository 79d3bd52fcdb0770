package validation

import (
	"fmt"
	"sort"

	"intake/internal/vision"
	strutil "intake/pkg/platform/strings"
)

// StepCode identifies a document step in the registration flow.
type StepCode int

const (
	StepNomination           StepCode = 3
	StepIDFrontBound         StepCode = 4
	StepIDBack               StepCode = 5
	StepBirthCertificate     StepCode = 6
	StepSecondaryCertificate StepCode = 7
	StepPhoto                StepCode = 8
	StepIDFrontUnbound       StepCode = 9
	StepIDBackAlias          StepCode = 10
)

// FaceRequirement constrains the number of faces a document must show.
type FaceRequirement int

const (
	FaceNone FaceRequirement = iota
	FaceExactlyOne
)

// TextSource says where a profile's text comes from.
type TextSource int

const (
	SourceImage TextSource = iota
	// SourcePDFReversed extracts embedded PDF text and reverses its runes.
	SourcePDFReversed
)

// LabelRule is satisfied when the label is reported with at least Min
// confidence.
type LabelRule struct {
	Name string
	Min  float64
}

// Profile describes how one document kind is scored.
type Profile struct {
	Code      StepCode
	Name      string
	Keywords  []string
	Labels    []LabelRule
	Face      FaceRequirement
	NameGated bool
	Source    TextSource
	// Binary profiles score 100 when the face requirement holds and 0
	// otherwise, ignoring keywords and labels.
	Binary bool
}

// Denominator is the maximum number of points the profile can award.
func (p Profile) Denominator() int {
	n := len(p.Keywords) + len(p.Labels)
	if p.Face == FaceExactlyOne {
		n++
	}
	return n
}

// Features lists the analyses the profile needs from the provider.
func (p Profile) Features() vision.Features {
	var fs []vision.Feature
	if !p.Binary && (len(p.Keywords) > 0 || p.NameGated) && p.Source == SourceImage {
		fs = append(fs, vision.FeatureText)
	}
	if p.Face != FaceNone {
		fs = append(fs, vision.FeatureFace)
	}
	if !p.Binary && len(p.Labels) > 0 {
		fs = append(fs, vision.FeatureLabel)
	}
	return vision.NewFeatures(fs...)
}

// Registry maps step codes, including aliases, to profiles.
type Registry struct {
	profiles map[StepCode]Profile
	aliases  map[StepCode]StepCode
}

// NewRegistry validates and indexes profiles. Keyword checklists are trimmed
// and de-duplicated. A profile that could never award a point, or an alias
// pointing at an unknown code, is rejected.
func NewRegistry(profiles []Profile, aliases map[StepCode]StepCode) (*Registry, error) {
	r := &Registry{
		profiles: make(map[StepCode]Profile, len(profiles)),
		aliases:  make(map[StepCode]StepCode, len(aliases)),
	}
	for _, p := range profiles {
		if _, dup := r.profiles[p.Code]; dup {
			return nil, fmt.Errorf("duplicate profile for step %d", p.Code)
		}
		p.Keywords = strutil.DedupeAndTrim(p.Keywords)
		if p.Denominator() == 0 {
			return nil, fmt.Errorf("profile for step %d awards no points", p.Code)
		}
		if p.Binary && p.Face == FaceNone {
			return nil, fmt.Errorf("binary profile for step %d needs a face requirement", p.Code)
		}
		r.profiles[p.Code] = p
	}
	for alias, target := range aliases {
		if _, ok := r.profiles[target]; !ok {
			return nil, fmt.Errorf("alias %d targets unknown step %d", alias, target)
		}
		if _, clash := r.profiles[alias]; clash {
			return nil, fmt.Errorf("alias %d shadows a profile", alias)
		}
		r.aliases[alias] = target
	}
	return r, nil
}

// Resolve returns the canonical profile for code.
func (r *Registry) Resolve(code StepCode) (Profile, bool) {
	if target, ok := r.aliases[code]; ok {
		code = target
	}
	p, ok := r.profiles[code]
	return p, ok
}

// Codes returns the canonical step codes in ascending order.
func (r *Registry) Codes() []StepCode {
	out := make([]StepCode, 0, len(r.profiles))
	for c := range r.profiles {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

var (
	idFrontKeywords = []string{"جمهورية", "مصر", "العربية", "بطاقة", "تحقيق", "الشخصية"}

	idBackKeywords = []string{"متزوج", "البطاقة", "سارية", "حتى", "طالب", "انثى", "مسلم", "انسه", "اعزب"}

	birthCertificateKeywords = []string{
		"مصر", "العربية", "وزارة", "الداخلية", "قطاع", "مصلحة", "الاحوال",
		"المدنية", "صورة", "قيد", "الميلاد", "المولود", "محل", "تاريخ",
		"الديانه", "النوع", "الأب", "الجنسية", "بيانات", "الأم", "توقيع",
		"تأكد", "وجود", "طابع", "الطفولة", "فئة", "جنيه", "العلامة",
		"المائية", "نسر", "شعار", "الجمهورية", "ثيقة", "أحوال", "مدنية",
		"والعلامة", "المائية،", "وثيقة",
	}

	secondaryCertificateKeywords = []string{
		"الإدارة", "العامة", "للامتحانات", "وزارة", "التربية", "التعليم", "امتحان", "شهادة", "إتمام", "الدراسة", "الثانوية",
		"الدور", "الأول", "العام", "الدراسي", "الجلوس", "الرقم", "القومي", "اسم", "الطالب",
		"اللغة", "العربية", "الأجنبية", "الأولى", "الثانية", "الفلسفة", "والمنطق", "علم", "النفس", "والاجتماع", "الجغرافيا",
		"الاقتصاد", "والإحصاء", "الوطنية", "الدينية", "المجموع", "الكلي", "روجعت", "جميع", "البيانات", "بالمدرسة", "ووجدت", "مطابقة",
		"شئون", "الطلبة", "رئيس", "لجنة", "النظام", "والمراقبة", "تنبيه", "هام", "هذا", "إخطار", "بنجاح", "من", "كان", "مصدقا",
		"عليها", "ومختومة", "بخاتم", "شعار", "ای", "کشط", "او", "تعديل", "فى", "الإخطار", "يعتبر", "لاغى",
	}

	nominationKeywords = []string{
		"نتيجة", "عام", "وزارة", "التعليم", "العالي", "مكتب", "تنسيق", "القبول",
		"بالجامعات", "والمعاهد", "إخطار", "مبدني", "بالترشيح", "برنامج", "تقليل",
		"الاغتراب", "بإخطاركم", "بأنه", "قد", "ترشيحكم", "ترتيب",
		"الرغبة", "رقم", "الجلوس", "الإيصال", "مجموع", "الدرجات", "الشهادة", "تاريخ",
		"اعلان", "ملحوظات", "هامة", "الثانوية", "العامة", "الكلية", "المعهد",
		"أعلاه", "بناء", "المقدمة", "ويتم", "إلغاء", "واتخاذ", "الإجراءات",
		"اذا", "وجد", "خطأ", "أو", "تعديل", "ثبوت", "يخالف", "ورد",
		"بالاوراق", "المسلمة", "استنفاذ", "سيتم", "فتح", "التقديم", "المراحل", "التالية",
	}
)

func idFrontLabels() []LabelRule {
	return []LabelRule{{"Paper", 0.6}, {"Font", 0.6}, {"Rectangle", 0.6}}
}

// DefaultProfiles returns the built-in document profiles.
func DefaultProfiles() []Profile {
	return []Profile{
		{
			Code:      StepNomination,
			Name:      "nomination_letter",
			Keywords:  nominationKeywords,
			NameGated: true,
			Source:    SourcePDFReversed,
		},
		{
			Code:      StepIDFrontBound,
			Name:      "national_id_front",
			Keywords:  idFrontKeywords,
			Labels:    idFrontLabels(),
			Face:      FaceExactlyOne,
			NameGated: true,
		},
		{
			Code:     StepIDBack,
			Name:     "national_id_back",
			Keywords: idBackKeywords,
			Labels:   []LabelRule{{"Font", 0.6}, {"Rectangle", 0.6}},
		},
		{
			Code:      StepBirthCertificate,
			Name:      "birth_certificate",
			Keywords:  birthCertificateKeywords,
			Labels:    []LabelRule{{"Paper", 0.5}, {"Font", 0.5}},
			NameGated: true,
		},
		{
			Code:      StepSecondaryCertificate,
			Name:      "secondary_certificate",
			Keywords:  secondaryCertificateKeywords,
			Labels:    []LabelRule{{"Signature", 0.5}, {"Paper", 0.5}, {"Font", 0.5}, {"Handwriting", 0.5}},
			Face:      FaceExactlyOne,
			NameGated: true,
		},
		{
			Code:   StepPhoto,
			Name:   "photo",
			Face:   FaceExactlyOne,
			Binary: true,
		},
		{
			Code:     StepIDFrontUnbound,
			Name:     "national_id_front_unbound",
			Keywords: idFrontKeywords,
			Labels:   idFrontLabels(),
		},
	}
}

// DefaultAliases maps legacy step codes to canonical ones.
func DefaultAliases() map[StepCode]StepCode {
	return map[StepCode]StepCode{StepIDBackAlias: StepIDBack}
}

// DefaultRegistry builds the registry of built-in profiles.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(DefaultProfiles(), DefaultAliases())
	if err != nil {
		panic(err)
	}
	return r
}
