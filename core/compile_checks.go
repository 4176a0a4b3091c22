package core

var (
	_ ConnectionService = (*Service)(nil)
	_ SessionStateStore = (*MemorySessionStateStore)(nil)
	_ TokenClient       = (*HTTPTokenClient)(nil)
	_ CredentialCodec   = JSONCredentialCodec{}
	_ CredentialCodec   = (*EncryptedCredentialCodec)(nil)
	_ ConfigProvider    = (*CfgxConfigProvider)(nil)
	_ OptionsResolver   = GoOptionsResolver{}
	_ RawConfigLoader   = staticRawConfigLoader{}
)
