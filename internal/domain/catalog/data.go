package catalog

var testCategories = []string{
	AllTests,
	"Basic Tests",
	"Heart Health",
	"Organ Health",
	"Hormones",
	"Diabetes",
	"Vitamins",
	"Anemia Profile",
}

var packageCategories = []string{
	AllPackages,
	"Premium Packages",
	"Women's Health",
	"Senior Care",
	"Basic Packages",
	"Specialized Packages",
}

var bloodTests = []Item{
	{
		ID:            1,
		Name:          "Complete Blood Count (CBC)",
		Description:   "Comprehensive blood analysis including RBC, WBC, platelets, and hemoglobin levels",
		Price:         299,
		OriginalPrice: 399,
		Duration:      "4-6 hours",
		Category:      "Basic Tests",
		Parameters:    25,
		ReportTime:    "Same day",
		SampleType:    "Blood",
		Preparation:   []string{"No special preparation required", "Wear comfortable clothing"},
		Includes: []string{
			"Red Blood Cell Count", "White Blood Cell Count", "Platelet Count",
			"Hemoglobin", "Hematocrit", "Mean Corpuscular Volume",
		},
		WhyTakeTest: "Essential for detecting anemia, infections, blood disorders, and overall health assessment",
		NormalRange: "Varies by parameter",
		Featured:    true,
	},
	{
		ID:            2,
		Name:          "Lipid Profile",
		Description:   "Cholesterol and triglyceride levels assessment for heart health",
		Price:         599,
		OriginalPrice: 799,
		Duration:      "12 hours fasting",
		Category:      "Heart Health",
		Parameters:    8,
		Fasting:       true,
		ReportTime:    "Same day",
		SampleType:    "Blood",
		Preparation: []string{
			"Fast for 12 hours before test", "Only water allowed during fasting", "Take medications as prescribed",
		},
		Includes: []string{
			"Total Cholesterol", "LDL Cholesterol", "HDL Cholesterol", "Triglycerides",
			"VLDL Cholesterol", "Non-HDL Cholesterol", "TC/HDL Ratio", "LDL/HDL Ratio",
		},
		WhyTakeTest: "Assess cardiovascular risk and monitor heart health",
		NormalRange: "Total Cholesterol: <200 mg/dL",
		Featured:    true,
	},
	{
		ID:            3,
		Name:          "Liver Function Test (LFT)",
		Description:   "Comprehensive liver health assessment including enzymes and proteins",
		Price:         449,
		OriginalPrice: 599,
		Duration:      "4-6 hours",
		Category:      "Organ Health",
		Parameters:    12,
		ReportTime:    "Same day",
		SampleType:    "Blood",
		Preparation:   []string{"No alcohol 24 hours before test", "Inform about medications"},
		Includes: []string{
			"SGPT/ALT", "SGOT/AST", "Alkaline Phosphatase", "Total Bilirubin", "Direct Bilirubin",
			"Indirect Bilirubin", "Total Protein", "Albumin", "Globulin", "A/G Ratio",
		},
		WhyTakeTest: "Detect liver diseases, monitor liver health, and assess liver function",
		NormalRange: "ALT: 7-56 U/L, AST: 10-40 U/L",
	},
	{
		ID:            4,
		Name:          "Thyroid Profile (T3, T4, TSH)",
		Description:   "Complete thyroid function evaluation for metabolism assessment",
		Price:         699,
		OriginalPrice: 899,
		Duration:      "No fasting",
		Category:      "Hormones",
		Parameters:    3,
		ReportTime:    "Next day",
		SampleType:    "Blood",
		Preparation:   []string{"No special preparation", "Take morning medications after test"},
		Includes:      []string{"T3 (Triiodothyronine)", "T4 (Thyroxine)", "TSH (Thyroid Stimulating Hormone)"},
		WhyTakeTest:   "Diagnose thyroid disorders, monitor thyroid treatment, assess metabolism",
		NormalRange:   "TSH: 0.4-4.0 mIU/L",
		Featured:      true,
	},
	{
		ID:            5,
		Name:          "Diabetes Panel (HbA1c + Glucose)",
		Description:   "Comprehensive diabetes screening and monitoring package",
		Price:         399,
		OriginalPrice: 549,
		Duration:      "8 hours fasting",
		Category:      "Diabetes",
		Parameters:    4,
		Fasting:       true,
		ReportTime:    "Same day",
		SampleType:    "Blood",
		Preparation:   []string{"Fast for 8 hours", "Only water allowed", "Continue diabetes medications as prescribed"},
		Includes: []string{
			"Fasting Blood Glucose", "HbA1c (Glycated Hemoglobin)", "Random Blood Sugar", "Average Blood Glucose",
		},
		WhyTakeTest: "Screen for diabetes, monitor blood sugar control, assess long-term glucose management",
		NormalRange: "Fasting Glucose: 70-100 mg/dL, HbA1c: <5.7%",
		Featured:    true,
	},
	{
		ID:            6,
		Name:          "Kidney Function Test (KFT)",
		Description:   "Complete kidney health assessment including creatinine and urea",
		Price:         349,
		OriginalPrice: 449,
		Duration:      "4-6 hours",
		Category:      "Organ Health",
		Parameters:    8,
		ReportTime:    "Same day",
		SampleType:    "Blood",
		Preparation:   []string{"Stay well hydrated", "Inform about medications affecting kidneys"},
		Includes: []string{
			"Serum Creatinine", "Blood Urea Nitrogen (BUN)", "Uric Acid", "Sodium",
			"Potassium", "Chloride", "eGFR", "BUN/Creatinine Ratio",
		},
		WhyTakeTest: "Assess kidney function, detect kidney disease, monitor kidney health",
	},
	{
		ID:            7,
		Name:          "Vitamin D Test",
		Description:   "Measure vitamin D levels for bone health and immunity",
		Price:         899,
		OriginalPrice: 1199,
		Duration:      "No fasting",
		Category:      "Vitamins",
		Parameters:    1,
		ReportTime:    "Next day",
		SampleType:    "Blood",
		Preparation:   []string{"No special preparation required"},
		Includes:      []string{"25-Hydroxy Vitamin D"},
		WhyTakeTest:   "Assess vitamin D deficiency, bone health, immune function",
	},
	{
		ID:            8,
		Name:          "Iron Studies",
		Description:   "Complete iron profile including ferritin and TIBC",
		Price:         799,
		OriginalPrice: 999,
		Duration:      "12 hours fasting",
		Category:      "Anemia Profile",
		Parameters:    5,
		Fasting:       true,
		ReportTime:    "Same day",
		SampleType:    "Blood",
		Preparation:   []string{"Fast for 12 hours", "Avoid iron supplements 24 hours before test"},
		Includes: []string{
			"Serum Iron", "Total Iron Binding Capacity (TIBC)", "Transferrin Saturation",
			"Ferritin", "Unsaturated Iron Binding Capacity",
		},
		WhyTakeTest: "Diagnose iron deficiency anemia, assess iron metabolism",
	},
}

var healthPackages = []Item{
	{
		ID:            101,
		Name:          "Executive Health Checkup",
		Description:   "Comprehensive health screening for working professionals",
		Price:         2999,
		OriginalPrice: 4999,
		Duration:      "Half day",
		Category:      "Premium Packages",
		Parameters:    85,
		Includes: []string{
			"Complete Blood Count", "Lipid Profile", "Liver Function Test", "Kidney Function Test",
			"Thyroid Profile", "Diabetes Panel", "Vitamin D", "ECG", "Chest X-Ray", "Doctor Consultation",
		},
		SuitableFor:   []string{"Working professionals", "Age 25-60", "Preventive health screening"},
		WhyChoose:     "Comprehensive screening designed for busy professionals with time constraints",
		Featured:      true,
		TestsIncluded: []int{1, 2, 3, 4, 5, 6, 7},
	},
	{
		ID:            102,
		Name:          "Women's Wellness Package",
		Description:   "Specialized health screening designed for women's health needs",
		Price:         2499,
		OriginalPrice: 3499,
		Duration:      "Half day",
		Category:      "Women's Health",
		Parameters:    65,
		Includes: []string{
			"Complete Blood Count", "Thyroid Profile", "Iron Studies", "Vitamin D", "Calcium",
			"Pap Smear", "Mammography", "Bone Density", "Gynecologist Consultation",
		},
		SuitableFor:   []string{"Women age 21-65", "Reproductive health", "Preventive screening"},
		WhyChoose:     "Tailored for women's unique health needs including reproductive and bone health",
		Featured:      true,
		TestsIncluded: []int{1, 4, 7, 8},
	},
	{
		ID:            103,
		Name:          "Senior Citizen Package",
		Description:   "Comprehensive health screening for adults above 60 years",
		Price:         1999,
		OriginalPrice: 2999,
		Duration:      "Full day",
		Category:      "Senior Care",
		Parameters:    75,
		Includes: []string{
			"Complete Blood Count", "Lipid Profile", "Diabetes Panel", "Kidney Function Test", "Liver Function Test",
			"Thyroid Profile", "ECG", "Echo Cardiogram", "Bone Density", "Geriatrician Consultation",
		},
		SuitableFor:   []string{"Adults above 60", "Chronic disease monitoring", "Age-related health issues"},
		WhyChoose:     "Comprehensive screening focusing on age-related health concerns and chronic diseases",
		TestsIncluded: []int{1, 2, 3, 4, 5, 6},
	},
	{
		ID:            104,
		Name:          "Basic Health Checkup",
		Description:   "Essential health screening for young adults",
		Price:         999,
		OriginalPrice: 1499,
		Duration:      "2 hours",
		Category:      "Basic Packages",
		Parameters:    35,
		Includes: []string{
			"Complete Blood Count", "Lipid Profile", "Diabetes Panel", "Liver Function Test", "Doctor Consultation",
		},
		SuitableFor:   []string{"Age 18-35", "First-time health screening", "Budget-conscious individuals"},
		WhyChoose:     "Affordable comprehensive screening covering essential health parameters",
		TestsIncluded: []int{1, 2, 5, 3},
	},
	{
		ID:            105,
		Name:          "Heart Health Package",
		Description:   "Specialized cardiovascular health assessment",
		Price:         1799,
		OriginalPrice: 2499,
		Duration:      "3 hours",
		Category:      "Specialized Packages",
		Parameters:    45,
		Includes: []string{
			"Lipid Profile", "ECG", "Echo Cardiogram", "Stress Test", "Chest X-Ray", "Cardiologist Consultation",
		},
		SuitableFor:   []string{"Family history of heart disease", "High cholesterol", "Hypertension"},
		WhyChoose:     "Comprehensive cardiovascular assessment with specialist consultation",
		TestsIncluded: []int{2},
	},
}
