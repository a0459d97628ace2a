// Package sopclass defines the SOP class UIDs used as abstract syntaxes
// during association negotiation.
package sopclass

// ApplicationContextName is the only application context defined by DICOM.
const ApplicationContextName = "1.2.840.10008.3.1.1.1"

const (
	Verification = "1.2.840.10008.1.1"

	PatientRootQueryRetrieveInformationModelFind = "1.2.840.10008.5.1.4.1.2.1.1"
	PatientRootQueryRetrieveInformationModelMove = "1.2.840.10008.5.1.4.1.2.1.2"
	PatientRootQueryRetrieveInformationModelGet  = "1.2.840.10008.5.1.4.1.2.1.3"
	StudyRootQueryRetrieveInformationModelFind   = "1.2.840.10008.5.1.4.1.2.2.1"
	StudyRootQueryRetrieveInformationModelMove   = "1.2.840.10008.5.1.4.1.2.2.2"
	StudyRootQueryRetrieveInformationModelGet    = "1.2.840.10008.5.1.4.1.2.2.3"

	ModalityWorklistInformationModelFind = "1.2.840.10008.5.1.4.31"

	ModalityPerformedProcedureStep = "1.2.840.10008.3.1.2.3.3"
	StorageCommitmentPushModel     = "1.2.840.10008.1.20.1"
)

// Storage SOP classes.
const (
	ComputedRadiographyImageStorage                     = "1.2.840.10008.5.1.4.1.1.1"
	DigitalXRayImageStorageForPresentation              = "1.2.840.10008.5.1.4.1.1.1.1"
	DigitalXRayImageStorageForProcessing                = "1.2.840.10008.5.1.4.1.1.1.1.1"
	DigitalMammographyXRayImageStorageForPresentation   = "1.2.840.10008.5.1.4.1.1.1.2"
	DigitalMammographyXRayImageStorageForProcessing     = "1.2.840.10008.5.1.4.1.1.1.2.1"
	DigitalIntraOralXRayImageStorageForPresentation     = "1.2.840.10008.5.1.4.1.1.1.3"
	DigitalIntraOralXRayImageStorageForProcessing       = "1.2.840.10008.5.1.4.1.1.1.3.1"
	CTImageStorage                                      = "1.2.840.10008.5.1.4.1.1.2"
	EnhancedCTImageStorage                              = "1.2.840.10008.5.1.4.1.1.2.1"
	LegacyConvertedEnhancedCTImageStorage               = "1.2.840.10008.5.1.4.1.1.2.2"
	UltrasoundMultiFrameImageStorage                    = "1.2.840.10008.5.1.4.1.1.3.1"
	MRImageStorage                                      = "1.2.840.10008.5.1.4.1.1.4"
	EnhancedMRImageStorage                              = "1.2.840.10008.5.1.4.1.1.4.1"
	MRSpectroscopyStorage                               = "1.2.840.10008.5.1.4.1.1.4.2"
	EnhancedMRColorImageStorage                         = "1.2.840.10008.5.1.4.1.1.4.3"
	LegacyConvertedEnhancedMRImageStorage               = "1.2.840.10008.5.1.4.1.1.4.4"
	UltrasoundImageStorage                              = "1.2.840.10008.5.1.4.1.1.6.1"
	EnhancedUSVolumeStorage                             = "1.2.840.10008.5.1.4.1.1.6.2"
	SecondaryCaptureImageStorage                        = "1.2.840.10008.5.1.4.1.1.7"
	MultiFrameGrayscaleByteSecondaryCaptureImageStorage = "1.2.840.10008.5.1.4.1.1.7.1"
	MultiFrameGrayscaleWordSecondaryCaptureImageStorage = "1.2.840.10008.5.1.4.1.1.7.2"
	MultiFrameTrueColorSecondaryCaptureImageStorage     = "1.2.840.10008.5.1.4.1.1.7.3"
	MultiFrameSingleBitSecondaryCaptureImageStorage     = "1.2.840.10008.5.1.4.1.1.7.4"
	TwelveLeadECGWaveformStorage                        = "1.2.840.10008.5.1.4.1.1.9.1.1"
	GeneralECGWaveformStorage                           = "1.2.840.10008.5.1.4.1.1.9.1.2"
	AmbulatoryECGWaveformStorage                        = "1.2.840.10008.5.1.4.1.1.9.1.3"
	HemodynamicWaveformStorage                          = "1.2.840.10008.5.1.4.1.1.9.2.1"
	BasicVoiceAudioWaveformStorage                      = "1.2.840.10008.5.1.4.1.1.9.4.1"
	GrayscaleSoftcopyPresentationStateStorage           = "1.2.840.10008.5.1.4.1.1.11.1"
	ColorSoftcopyPresentationStateStorage               = "1.2.840.10008.5.1.4.1.1.11.2"
	XRayAngiographicImageStorage                        = "1.2.840.10008.5.1.4.1.1.12.1"
	EnhancedXAImageStorage                              = "1.2.840.10008.5.1.4.1.1.12.1.1"
	XRayRadiofluoroscopicImageStorage                   = "1.2.840.10008.5.1.4.1.1.12.2"
	EnhancedXRFImageStorage                             = "1.2.840.10008.5.1.4.1.1.12.2.1"
	XRay3DAngiographicImageStorage                      = "1.2.840.10008.5.1.4.1.1.13.1.1"
	XRay3DCraniofacialImageStorage                      = "1.2.840.10008.5.1.4.1.1.13.1.2"
	BreastTomosynthesisImageStorage                     = "1.2.840.10008.5.1.4.1.1.13.1.3"
	NuclearMedicineImageStorage                         = "1.2.840.10008.5.1.4.1.1.20"
	SpatialRegistrationStorage                          = "1.2.840.10008.5.1.4.1.1.66.1"
	SpatialFiducialsStorage                             = "1.2.840.10008.5.1.4.1.1.66.2"
	SegmentationStorage                                 = "1.2.840.10008.5.1.4.1.1.66.4"
	RawDataStorage                                      = "1.2.840.10008.5.1.4.1.1.66"
	VLEndoscopicImageStorage                            = "1.2.840.10008.5.1.4.1.1.77.1.1"
	VLMicroscopicImageStorage                           = "1.2.840.10008.5.1.4.1.1.77.1.2"
	VLSlideCoordinatesMicroscopicImageStorage           = "1.2.840.10008.5.1.4.1.1.77.1.3"
	VLPhotographicImageStorage                          = "1.2.840.10008.5.1.4.1.1.77.1.4"
	OphthalmicPhotography8BitImageStorage               = "1.2.840.10008.5.1.4.1.1.77.1.5.1"
	OphthalmicPhotography16BitImageStorage              = "1.2.840.10008.5.1.4.1.1.77.1.5.2"
	OphthalmicTomographyImageStorage                    = "1.2.840.10008.5.1.4.1.1.77.1.5.4"
	VLWholeSlideMicroscopyImageStorage                  = "1.2.840.10008.5.1.4.1.1.77.1.6"
	BasicTextSRStorage                                  = "1.2.840.10008.5.1.4.1.1.88.11"
	EnhancedSRStorage                                   = "1.2.840.10008.5.1.4.1.1.88.22"
	ComprehensiveSRStorage                              = "1.2.840.10008.5.1.4.1.1.88.33"
	KeyObjectSelectionDocumentStorage                   = "1.2.840.10008.5.1.4.1.1.88.59"
	XRayRadiationDoseSRStorage                          = "1.2.840.10008.5.1.4.1.1.88.67"
	EncapsulatedPDFStorage                              = "1.2.840.10008.5.1.4.1.1.104.1"
	EncapsulatedCDAStorage                              = "1.2.840.10008.5.1.4.1.1.104.2"
	PositronEmissionTomographyImageStorage              = "1.2.840.10008.5.1.4.1.1.128"
	LegacyConvertedEnhancedPETImageStorage              = "1.2.840.10008.5.1.4.1.1.128.1"
	EnhancedPETImageStorage                             = "1.2.840.10008.5.1.4.1.1.130"
	RTImageStorage                                      = "1.2.840.10008.5.1.4.1.1.481.1"
	RTDoseStorage                                       = "1.2.840.10008.5.1.4.1.1.481.2"
	RTStructureSetStorage                               = "1.2.840.10008.5.1.4.1.1.481.3"
	RTBeamsTreatmentRecordStorage                       = "1.2.840.10008.5.1.4.1.1.481.4"
	RTPlanStorage                                       = "1.2.840.10008.5.1.4.1.1.481.5"
	RTBrachyTreatmentRecordStorage                      = "1.2.840.10008.5.1.4.1.1.481.6"
	RTTreatmentSummaryRecordStorage                     = "1.2.840.10008.5.1.4.1.1.481.7"
	RTIonPlanStorage                                    = "1.2.840.10008.5.1.4.1.1.481.8"
	RTIonBeamsTreatmentRecordStorage                    = "1.2.840.10008.5.1.4.1.1.481.9"
)

// StorageClasses is the list of storage SOP classes proposed on behalf of a
// C-GET request, since its sub-operations may carry any of them.
var StorageClasses = []string{
	ComputedRadiographyImageStorage,
	DigitalXRayImageStorageForPresentation,
	DigitalXRayImageStorageForProcessing,
	DigitalMammographyXRayImageStorageForPresentation,
	DigitalMammographyXRayImageStorageForProcessing,
	DigitalIntraOralXRayImageStorageForPresentation,
	DigitalIntraOralXRayImageStorageForProcessing,
	CTImageStorage,
	EnhancedCTImageStorage,
	LegacyConvertedEnhancedCTImageStorage,
	UltrasoundMultiFrameImageStorage,
	MRImageStorage,
	EnhancedMRImageStorage,
	MRSpectroscopyStorage,
	EnhancedMRColorImageStorage,
	LegacyConvertedEnhancedMRImageStorage,
	UltrasoundImageStorage,
	EnhancedUSVolumeStorage,
	SecondaryCaptureImageStorage,
	MultiFrameGrayscaleByteSecondaryCaptureImageStorage,
	MultiFrameGrayscaleWordSecondaryCaptureImageStorage,
	MultiFrameTrueColorSecondaryCaptureImageStorage,
	MultiFrameSingleBitSecondaryCaptureImageStorage,
	TwelveLeadECGWaveformStorage,
	GeneralECGWaveformStorage,
	AmbulatoryECGWaveformStorage,
	HemodynamicWaveformStorage,
	BasicVoiceAudioWaveformStorage,
	GrayscaleSoftcopyPresentationStateStorage,
	ColorSoftcopyPresentationStateStorage,
	XRayAngiographicImageStorage,
	EnhancedXAImageStorage,
	XRayRadiofluoroscopicImageStorage,
	EnhancedXRFImageStorage,
	XRay3DAngiographicImageStorage,
	XRay3DCraniofacialImageStorage,
	BreastTomosynthesisImageStorage,
	NuclearMedicineImageStorage,
	SpatialRegistrationStorage,
	SpatialFiducialsStorage,
	SegmentationStorage,
	RawDataStorage,
	VLEndoscopicImageStorage,
	VLMicroscopicImageStorage,
	VLSlideCoordinatesMicroscopicImageStorage,
	VLPhotographicImageStorage,
	OphthalmicPhotography8BitImageStorage,
	OphthalmicPhotography16BitImageStorage,
	OphthalmicTomographyImageStorage,
	VLWholeSlideMicroscopyImageStorage,
	BasicTextSRStorage,
	EnhancedSRStorage,
	ComprehensiveSRStorage,
	KeyObjectSelectionDocumentStorage,
	XRayRadiationDoseSRStorage,
	EncapsulatedPDFStorage,
	EncapsulatedCDAStorage,
	PositronEmissionTomographyImageStorage,
	LegacyConvertedEnhancedPETImageStorage,
	EnhancedPETImageStorage,
	RTImageStorage,
	RTDoseStorage,
	RTStructureSetStorage,
	RTBeamsTreatmentRecordStorage,
	RTPlanStorage,
	RTBrachyTreatmentRecordStorage,
	RTTreatmentSummaryRecordStorage,
	RTIonPlanStorage,
	RTIonBeamsTreatmentRecordStorage,
}

// QueryRetrieveFindClasses are the information models a C-FIND may address.
var QueryRetrieveFindClasses = []string{
	PatientRootQueryRetrieveInformationModelFind,
	StudyRootQueryRetrieveInformationModelFind,
	ModalityWorklistInformationModelFind,
}

// QueryRetrieveMoveClasses are the information models a C-MOVE may address.
var QueryRetrieveMoveClasses = []string{
	PatientRootQueryRetrieveInformationModelMove,
	StudyRootQueryRetrieveInformationModelMove,
}

// QueryRetrieveGetClasses are the information models a C-GET may address.
var QueryRetrieveGetClasses = []string{
	PatientRootQueryRetrieveInformationModelGet,
	StudyRootQueryRetrieveInformationModelGet,
}

// IsStorage reports whether uid is one of StorageClasses.
func IsStorage(uid string) bool {
	return contains(StorageClasses, uid)
}

func contains(list []string, uid string) bool {
	for _, v := range list {
		if v == uid {
			return true
		}
	}
	return false
}
