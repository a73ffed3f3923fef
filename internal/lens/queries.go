package lens

// Operation names. The development API dispatches on these.
const (
	OpDefaultProfile      = "DefaultProfile"
	OpChallenge           = "Challenge"
	OpAuthenticate        = "Authenticate"
	OpRefresh             = "Refresh"
	OpVerify              = "Verify"
	OpValidateMetadata    = "ValidateMetadata"
	OpCreatePostTypedData = "CreatePostTypedData"
)

const defaultProfileQuery = `query DefaultProfile($address: EthereumAddress!) {
  defaultProfile(request: { ethereumAddress: $address }) {
    id
    handle
  }
}`

const challengeQuery = `query Challenge($address: EthereumAddress!) {
  challenge(request: { address: $address }) {
    text
  }
}`

const authenticateMutation = `mutation Authenticate($address: EthereumAddress!, $signature: Signature!) {
  authenticate(request: { address: $address, signature: $signature }) {
    accessToken
    refreshToken
  }
}`

const refreshMutation = `mutation Refresh($refreshToken: Jwt!) {
  refresh(request: { refreshToken: $refreshToken }) {
    accessToken
    refreshToken
  }
}`

const verifyQuery = `query Verify($accessToken: Jwt!) {
  verify(request: { accessToken: $accessToken })
}`

const validateMetadataQuery = `query ValidateMetadata($metadatav2: PublicationMetadataV2Input!) {
  validatePublicationMetadata(request: { metadatav2: $metadatav2 }) {
    valid
    reason
  }
}`

const createPostTypedDataMutation = `mutation CreatePostTypedData($request: CreatePublicPostRequest!) {
  createPostTypedData(request: $request) {
    id
    expiresAt
    typedData {
      types {
        PostWithSig {
          name
          type
        }
      }
      domain {
        name
        chainId
        version
        verifyingContract
      }
      value {
        nonce
        deadline
        profileId
        contentURI
        collectModule
        collectModuleInitData
        referenceModule
        referenceModuleInitData
      }
    }
  }
}`
