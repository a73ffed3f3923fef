package chain

// LensHubABI covers the LensHub methods used for publishing.
const LensHubABI = `[
	{
		"inputs": [
			{
				"components": [
					{"internalType": "uint256", "name": "profileId", "type": "uint256"},
					{"internalType": "string", "name": "contentURI", "type": "string"},
					{"internalType": "address", "name": "collectModule", "type": "address"},
					{"internalType": "bytes", "name": "collectModuleInitData", "type": "bytes"},
					{"internalType": "address", "name": "referenceModule", "type": "address"},
					{"internalType": "bytes", "name": "referenceModuleInitData", "type": "bytes"},
					{
						"components": [
							{"internalType": "uint8", "name": "v", "type": "uint8"},
							{"internalType": "bytes32", "name": "r", "type": "bytes32"},
							{"internalType": "bytes32", "name": "s", "type": "bytes32"},
							{"internalType": "uint256", "name": "deadline", "type": "uint256"}
						],
						"internalType": "struct DataTypes.EIP712Signature",
						"name": "sig",
						"type": "tuple"
					}
				],
				"internalType": "struct DataTypes.PostWithSigData",
				"name": "vars",
				"type": "tuple"
			}
		],
		"name": "postWithSig",
		"outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [{"internalType": "uint256", "name": "profileId", "type": "uint256"}],
		"name": "getPubCount",
		"outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
		"stateMutability": "view",
		"type": "function"
	}
]`
