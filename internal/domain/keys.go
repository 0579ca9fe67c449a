package domain

// KeyPrefix namespaces every key this service writes to its store.
const KeyPrefix = "search:"
