package repoconstants

const CALL_RECORD_COLLECTION = "CallRecords"
