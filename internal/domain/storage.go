package domain

// KeyPrefix namespaces all redis keys written by the service.
const KeyPrefix = "citegate:"
